package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SpotterProfile is the local view of a spotter: tier plus denormalized counters.
// Username and tier are mirrored from the backend profile table by the sync worker.
type SpotterProfile struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string `gorm:"index" json:"username"`

	Tier         string  `gorm:"type:varchar(16);not null;default:'learning'" json:"tier"`
	ApprovalRate float64 `gorm:"default:0" json:"approval_rate"`

	// Activity counters
	TotalSubmissions       int64 `gorm:"default:0" json:"total_submissions"`
	ApprovedSubmissions    int64 `gorm:"default:0" json:"approved_submissions"`
	RejectedSubmissions    int64 `gorm:"default:0" json:"rejected_submissions"`
	HighQualitySubmissions int64 `gorm:"default:0" json:"high_quality_submissions"`
	TotalValidations       int64 `gorm:"default:0" json:"total_validations"`
	BestStreak             int   `gorm:"default:0" json:"best_streak"`

	TotalEarned decimal.Decimal `gorm:"type:numeric(12,4);default:0" json:"total_earned"`

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastTierUpAt *time.Time `json:"last_tier_up_at,omitempty"`

	Timestamps
}

func (p *SpotterProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
