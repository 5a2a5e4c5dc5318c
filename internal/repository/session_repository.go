package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bladi-assistant/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// GetActiveByKey returns nil when no active session carries the key.
func (r *SessionRepository) GetActiveByKey(ctx context.Context, key string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("session_key = ? AND is_active = ?", key, true).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetByKey(ctx context.Context, key string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("session_key = ?", key).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) Touch(ctx context.Context, session *model.Session, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(session).Update("updated_at", at).Error; err != nil {
		return fmt.Errorf("touch session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListByUserID(ctx context.Context, userID uint, offset, limit int) ([]model.Session, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&model.Session{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count sessions failed: %w", err)
	}

	var sessions []model.Session
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, total, nil
}
