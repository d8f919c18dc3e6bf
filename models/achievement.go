package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AchievementType: static config seeded at startup
type AchievementType struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string           `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_TREND", "ON_FIRE"
	Name        string           `gorm:"not null" json:"name"`
	Description string           `json:"description"`
	Rarity      string           `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	Threshold   map[string]int64 `gorm:"serializer:json" json:"threshold"`                // e.g., {"total_submissions": 1}
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (a *AchievementType) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// SpotterAchievement: awarded instance
type SpotterAchievement struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID    string    `gorm:"uniqueIndex:idx_spotter_achievement;not null" json:"external_user_id"`
	AchievementTypeID string    `gorm:"uniqueIndex:idx_spotter_achievement;not null" json:"achievement_type_id"`
	AwardedAt         time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

func (a *SpotterAchievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

var AchievementTriggers = []AchievementType{
	{
		Code:        "FIRST_TREND",
		Name:        "First Spot",
		Description: "Submitted your first trend",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_submissions": 1},
	},
	{
		Code:        "ON_FIRE",
		Name:        "On Fire",
		Description: "Reached a 10x streak in one scroll session",
		Rarity:      "epic",
		Threshold:   map[string]int64{"best_streak": 10},
	},
	{
		Code:        "VALIDATOR_50",
		Name:        "Trusted Validator",
		Description: "Cast 50 validation votes",
		Rarity:      "rare",
		Threshold:   map[string]int64{"total_validations": 50},
	},
	{
		Code:        "QUALITY_SPOTTER",
		Name:        "Quality Spotter",
		Description: "Submitted 10 trends scoring 80% or more",
		Rarity:      "rare",
		Threshold:   map[string]int64{"high_quality_submissions": 10},
	},
}
