package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bladi-assistant/internal/model"
)

type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, feedback *model.Feedback) error {
	if err := r.db.WithContext(ctx).Create(feedback).Error; err != nil {
		return fmt.Errorf("create feedback failed: %w", err)
	}
	return nil
}

func (r *FeedbackRepository) ListByMessageID(ctx context.Context, messageID uint) ([]model.Feedback, error) {
	var list []model.Feedback
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list feedback failed: %w", err)
	}
	return list, nil
}
