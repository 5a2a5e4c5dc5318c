package model

import "time"

type Session struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	SessionKey string    `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	UserAgent  string    `gorm:"size:512" json:"-"`
	IPAddress  string    `gorm:"size:64" json:"-"`
	IsActive   bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Session) HasUser() bool {
	return s != nil && s.UserID != nil && *s.UserID != 0
}
