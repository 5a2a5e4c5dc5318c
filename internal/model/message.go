package model

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ParseRole accepts the legacy "assistant" spelling as a bot turn.
func ParseRole(raw string) (Role, error) {
	switch raw {
	case string(RoleUser):
		return RoleUser, nil
	case string(RoleBot), "assistant":
		return RoleBot, nil
	default:
		return "", fmt.Errorf("unknown message role %q", raw)
	}
}

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      uint      `gorm:"not null;index:idx_messages_session_created,priority:1" json:"session_id"`
	Role           Role      `gorm:"size:16;not null;index" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Category       Category  `gorm:"size:32;not null;default:'other'" json:"category"`
	ResponseTimeMs *int64    `json:"response_time_ms,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_messages_session_created,priority:2" json:"created_at"`

	Session *Session `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
