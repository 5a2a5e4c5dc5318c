package app

import (
	"context"
	"errors"
	"strings"

	"bladi-assistant/internal/model"
)

var (
	ErrMessageNotFound     = errors.New("message not found")
	ErrInvalidFeedbackKind = errors.New("feedback_type must be positive, negative or neutral")
	ErrFeedbackDisabled    = errors.New("feedback is disabled")
)

type FeedbackStore interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	ListByMessageID(ctx context.Context, messageID uint) ([]model.Feedback, error)
}

type MessageLookup interface {
	GetByID(ctx context.Context, id uint) (*model.Message, error)
}

type FeedbackService struct {
	messages MessageLookup
	feedback FeedbackStore
	enabled  bool
}

type FeedbackInput struct {
	MessageID uint
	Kind      string
	Comment   string
	IPAddress string
}

func NewFeedbackService(messages MessageLookup, feedback FeedbackStore, enabled bool) *FeedbackService {
	return &FeedbackService{
		messages: messages,
		feedback: feedback,
		enabled:  enabled,
	}
}

// Record appends a feedback row; a message may collect any number of them.
func (s *FeedbackService) Record(ctx context.Context, input FeedbackInput) (*model.Feedback, error) {
	if !s.enabled {
		return nil, ErrFeedbackDisabled
	}
	if input.MessageID == 0 || strings.TrimSpace(input.Kind) == "" {
		return nil, ErrInvalidInput
	}
	kind, err := model.ParseFeedbackKind(input.Kind)
	if err != nil {
		return nil, ErrInvalidFeedbackKind
	}

	message, err := s.messages.GetByID(ctx, input.MessageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}

	feedback := &model.Feedback{
		MessageID: message.ID,
		Kind:      kind,
		Comment:   strings.TrimSpace(input.Comment),
		IPAddress: input.IPAddress,
	}
	if err := s.feedback.Create(ctx, feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

func (s *FeedbackService) ListByMessage(ctx context.Context, messageID uint) ([]model.Feedback, error) {
	if messageID == 0 {
		return nil, ErrInvalidInput
	}
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}
	return s.feedback.ListByMessageID(ctx, messageID)
}
