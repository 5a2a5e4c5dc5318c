package model

import "time"

// DateLayout is the calendar-day key of DailyAnalytics rows.
const DateLayout = "2006-01-02"

// DailyAnalytics holds one row per calendar day. The per-category counters
// always sum to TotalMessages.
type DailyAnalytics struct {
	ID                      uint      `gorm:"primaryKey" json:"-"`
	Date                    string    `gorm:"size:10;not null;uniqueIndex" json:"date"`
	TotalMessages           int64     `gorm:"not null;default:0" json:"total_messages"`
	TotalSessions           int64     `gorm:"not null;default:0" json:"total_sessions"`
	ResponseTimeTotalMs     int64     `gorm:"not null;default:0" json:"-"`
	FiscaliteQuestions      int64     `gorm:"not null;default:0" json:"fiscalite_questions"`
	ImmobilierQuestions     int64     `gorm:"not null;default:0" json:"immobilier_questions"`
	InvestissementQuestions int64     `gorm:"not null;default:0" json:"investissement_questions"`
	AdministrationQuestions int64     `gorm:"not null;default:0" json:"administration_questions"`
	FormationQuestions      int64     `gorm:"not null;default:0" json:"formation_questions"`
	OffTopicQuestions       int64     `gorm:"not null;default:0" json:"off_topic_questions"`
	CreatedAt               time.Time `json:"-"`
	UpdatedAt               time.Time `json:"-"`
}

func (DailyAnalytics) TableName() string {
	return "daily_analytics"
}

// CategoryCount returns the counter for one category.
func (a *DailyAnalytics) CategoryCount(c Category) int64 {
	switch c {
	case CategoryFiscalite:
		return a.FiscaliteQuestions
	case CategoryImmobilier:
		return a.ImmobilierQuestions
	case CategoryInvestissement:
		return a.InvestissementQuestions
	case CategoryAdministration:
		return a.AdministrationQuestions
	case CategoryFormation:
		return a.FormationQuestions
	default:
		return a.OffTopicQuestions
	}
}

// Apply adds one turn to the in-memory row, mirroring the SQL upsert.
func (a *DailyAnalytics) Apply(event TurnEvent) {
	a.TotalMessages++
	a.ResponseTimeTotalMs += event.ResponseTimeMs
	if event.NewSession {
		a.TotalSessions++
	}
	switch event.Category {
	case CategoryFiscalite:
		a.FiscaliteQuestions++
	case CategoryImmobilier:
		a.ImmobilierQuestions++
	case CategoryInvestissement:
		a.InvestissementQuestions++
	case CategoryAdministration:
		a.AdministrationQuestions++
	case CategoryFormation:
		a.FormationQuestions++
	default:
		a.OffTopicQuestions++
	}
}

// TurnEvent is one analytics increment, published per chat turn.
type TurnEvent struct {
	Date           string   `json:"date"`
	Category       Category `json:"category"`
	ResponseTimeMs int64    `json:"response_time_ms"`
	NewSession     bool     `json:"new_session"`
}
