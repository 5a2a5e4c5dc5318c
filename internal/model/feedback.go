package model

import (
	"fmt"
	"strings"
	"time"
)

type FeedbackKind string

const (
	FeedbackPositive FeedbackKind = "positive"
	FeedbackNegative FeedbackKind = "negative"
	FeedbackNeutral  FeedbackKind = "neutral"
)

func ParseFeedbackKind(raw string) (FeedbackKind, error) {
	switch kind := FeedbackKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case FeedbackPositive, FeedbackNegative, FeedbackNeutral:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown feedback kind %q", raw)
	}
}

type Feedback struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	MessageID uint         `gorm:"not null;index" json:"message_id"`
	Kind      FeedbackKind `gorm:"size:16;not null" json:"feedback_type"`
	Comment   string       `gorm:"type:text" json:"comment,omitempty"`
	IPAddress string       `gorm:"size:64" json:"-"`
	CreatedAt time.Time    `json:"created_at"`

	Message *Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
