package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bladi-assistant/internal/model"
)

type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// IncrementDaily credits one turn to the event's day in a single upsert, so
// concurrent turns never lose an increment.
func (r *AnalyticsRepository) IncrementDaily(ctx context.Context, event model.TurnEvent) error {
	row := model.DailyAnalytics{Date: event.Date}
	row.Apply(event)

	categoryColumn := event.Category.AnalyticsColumn()
	updates := map[string]interface{}{
		"total_messages":         gorm.Expr("total_messages + ?", 1),
		"response_time_total_ms": gorm.Expr("response_time_total_ms + ?", event.ResponseTimeMs),
		categoryColumn:           gorm.Expr(categoryColumn+" + ?", 1),
		"updated_at":             gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if event.NewSession {
		updates["total_sessions"] = gorm.Expr("total_sessions + ?", 1)
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("increment daily analytics failed: %w", err)
	}
	return nil
}

// ListRange returns rows with from <= date <= to, newest first.
func (r *AnalyticsRepository) ListRange(ctx context.Context, from, to string) ([]model.DailyAnalytics, error) {
	var rows []model.DailyAnalytics
	if err := r.db.WithContext(ctx).Where("date BETWEEN ? AND ?", from, to).Order("date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list daily analytics failed: %w", err)
	}
	return rows, nil
}
