package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScrollSession records one scroll session once it ends.
type ScrollSession struct {
	ID           string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string          `gorm:"index;not null" json:"user_id"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	TrendsLogged int             `gorm:"default:0" json:"trends_logged"`
	BestStreak   int             `gorm:"default:0" json:"best_streak"`
	Earned       decimal.Decimal `gorm:"type:numeric(12,4);default:0" json:"earned"`

	Timestamps
}

func (s *ScrollSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
