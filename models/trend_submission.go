package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TrendStatusSubmitted = "submitted"
	TrendStatusValidated = "validated"
	TrendStatusRejected  = "rejected"
)

// TrendMetadata holds the optional descriptive fields of a submission.
type TrendMetadata struct {
	TrendName   string   `json:"trend_name,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	AgeRanges   []string `json:"age_ranges,omitempty"`
	Subcultures []string `json:"subcultures,omitempty"`
	Region      string   `json:"region,omitempty"`
	Moods       []string `json:"moods,omitempty"`
	SpreadSpeed string   `json:"spread_speed,omitempty"`
}

// Completeness is the filled fraction of the eight metadata fields.
func (m TrendMetadata) Completeness() float64 {
	filled := 0
	for _, s := range []string{m.TrendName, m.Explanation, m.Region, m.SpreadSpeed} {
		if strings.TrimSpace(s) != "" {
			filled++
		}
	}
	for _, l := range [][]string{m.Categories, m.AgeRanges, m.Subcultures, m.Moods} {
		if len(l) > 0 {
			filled++
		}
	}
	return float64(filled) / 8
}

// TrendSubmission is a spotted trend. Quality and payment are computed once at
// submission and never recomputed.
type TrendSubmission struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	SpotterID string `gorm:"index;not null" json:"spotter_id"`

	PostURL  string `gorm:"type:text;not null" json:"post_url"`
	URLKey   string `gorm:"uniqueIndex;not null" json:"-"`
	Platform string `gorm:"type:varchar(16)" json:"platform"`

	Title         string        `json:"title"`
	Description   string        `gorm:"type:text" json:"description"`
	Category      string        `gorm:"type:varchar(32);index;not null" json:"category"`
	RawCategory   string        `json:"raw_category,omitempty"`
	ScreenshotURL string        `gorm:"type:text" json:"screenshot_url,omitempty"`
	ThumbnailURL  string        `gorm:"type:text" json:"thumbnail_url,omitempty"`
	PostedAt      *time.Time    `json:"posted_at,omitempty"`
	Metadata      TrendMetadata `gorm:"serializer:json" json:"metadata"`

	ViewsCount    int64 `gorm:"default:0" json:"views_count"`
	LikesCount    int64 `gorm:"default:0" json:"likes_count"`
	CommentsCount int64 `gorm:"default:0" json:"comments_count"`
	SharesCount   int64 `gorm:"default:0" json:"shares_count"`

	QualityPolicy        string  `gorm:"type:varchar(16)" json:"quality_policy"`
	QualityScore         float64 `json:"quality_score"`
	MetadataCompleteness float64 `json:"metadata_completeness"`
	HasScreenshot        bool    `json:"has_screenshot"`
	HasVideo             bool    `json:"has_video"`

	PaymentAmount    decimal.Decimal `gorm:"type:numeric(12,4)" json:"payment_amount"`
	PaymentBreakdown []string        `gorm:"serializer:json" json:"payment_breakdown"`

	ValidationDifficulty float64 `gorm:"default:1" json:"validation_difficulty"`

	ValidationCount int    `gorm:"default:0" json:"validation_count"`
	ApproveCount    int    `gorm:"default:0" json:"approve_count"`
	RejectCount     int    `gorm:"default:0" json:"reject_count"`
	Status          string `gorm:"type:varchar(16);index;not null;default:'submitted'" json:"status"`
	Stage           string `gorm:"type:varchar(16);not null;default:'submitted'" json:"stage"`

	Timestamps
}

func (t *TrendSubmission) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
