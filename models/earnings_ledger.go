package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EarningType string

const (
	EarningTypeTrendSubmission EarningType = "trend_submission"
	EarningTypeValidation      EarningType = "trend_validation"
	EarningTypeScrollSession   EarningType = "scroll_session"
)

// EarningStatus: pending is the only state that can move.
type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusConfirmed EarningStatus = "confirmed"
	EarningStatusRejected  EarningStatus = "rejected"
)

type EarningsLedger struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string          `gorm:"index;not null" json:"user_id"`
	TrendID     *string         `gorm:"index" json:"trend_id,omitempty"`
	SessionID   *string         `gorm:"index" json:"session_id,omitempty"`
	Type        EarningType     `gorm:"type:varchar(32);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"amount"`
	Status      EarningStatus   `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`
	Description string          `json:"description"`
	Breakdown   []string        `gorm:"serializer:json" json:"breakdown"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`

	Timestamps
}

func (EarningsLedger) TableName() string {
	return "earnings_ledger"
}

func (e *EarningsLedger) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
