package app

import (
	"context"
	"time"

	"bladi-assistant/internal/model"
)

type AnalyticsStore interface {
	IncrementDaily(ctx context.Context, event model.TurnEvent) error
	ListRange(ctx context.Context, from, to string) ([]model.DailyAnalytics, error)
}

type AnalyticsService struct {
	store       AnalyticsStore
	defaultDays int
	now         func() time.Time
}

type AnalyticsSummary struct {
	From              string                 `json:"from"`
	To                string                 `json:"to"`
	TotalMessages     int64                  `json:"total_messages"`
	TotalSessions     int64                  `json:"total_sessions"`
	AvgResponseTimeMs float64                `json:"avg_response_time_ms"`
	ByCategory        map[string]int64       `json:"domain_stats"`
	Days              []model.DailyAnalytics `json:"days"`
}

func NewAnalyticsService(store AnalyticsStore, defaultDays int) *AnalyticsService {
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &AnalyticsService{
		store:       store,
		defaultDays: defaultDays,
		now:         time.Now,
	}
}

func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	if now != nil {
		s.now = now
	}
	return s
}

// Summary aggregates the trailing window ending today. days <= 0 uses the
// configured default.
func (s *AnalyticsService) Summary(ctx context.Context, days int) (*AnalyticsSummary, error) {
	if days <= 0 {
		days = s.defaultDays
	}
	if days > 366 {
		return nil, ErrInvalidInput
	}

	end := s.now()
	from := end.AddDate(0, 0, -days).Format(model.DateLayout)
	to := end.Format(model.DateLayout)

	rows, err := s.store.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &AnalyticsSummary{
		From:       from,
		To:         to,
		ByCategory: make(map[string]int64, len(model.Categories())),
		Days:       rows,
	}
	for _, category := range model.Categories() {
		summary.ByCategory[category.StatsKey()] = 0
	}

	var responseTotal int64
	for i := range rows {
		row := &rows[i]
		summary.TotalMessages += row.TotalMessages
		summary.TotalSessions += row.TotalSessions
		responseTotal += row.ResponseTimeTotalMs
		for _, category := range model.Categories() {
			summary.ByCategory[category.StatsKey()] += row.CategoryCount(category)
		}
	}
	if summary.TotalMessages > 0 {
		summary.AvgResponseTimeMs = float64(responseTotal) / float64(summary.TotalMessages)
	}
	return summary, nil
}
