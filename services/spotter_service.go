package services

import (
	"errors"
	"time"

	"trend-spotting-system/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HighQualityThreshold is the score a submission needs to count towards
// QUALITY_SPOTTER.
const HighQualityThreshold = 0.8

type SpotterService struct {
	DB  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

func NewSpotterService(db *gorm.DB, log zerolog.Logger) *SpotterService {
	return &SpotterService{DB: db, log: log, now: time.Now}
}

// EnsureProfile returns the spotter's profile, creating it on first use.
// New spotters start in the learning tier.
func (s *SpotterService) EnsureProfile(externalUserID string) (*models.SpotterProfile, error) {
	return ensureProfile(s.DB, externalUserID)
}

func ensureProfile(db *gorm.DB, externalUserID string) (*models.SpotterProfile, error) {
	var prof models.SpotterProfile
	err := db.Where("external_user_id = ?", externalUserID).First(&prof).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prof = models.SpotterProfile{
			ExternalUserID: externalUserID,
			Tier:           string(TierLearning),
			TotalEarned:    decimal.Zero,
		}
		if err := db.Create(&prof).Error; err != nil {
			return nil, err
		}
		return &prof, nil
	}
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

// SubmissionsSince counts a spotter's submissions created at or after since.
func SubmissionsSince(db *gorm.DB, spotterID string, since time.Time) (int64, error) {
	var n int64
	err := db.Model(&models.TrendSubmission{}).
		Where("spotter_id = ? AND created_at >= ?", spotterID, since).
		Count(&n).Error
	return n, err
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordStreak keeps the best streak seen in any session.
func (s *SpotterService) RecordStreak(externalUserID string, streak int) error {
	return s.DB.Model(&models.SpotterProfile{}).
		Where("external_user_id = ? AND best_streak < ?", externalUserID, streak).
		Update("best_streak", streak).Error
}

// RecomputeTier re-buckets a spotter from approval rate and 30 day volume and
// persists the result.
func (s *SpotterService) RecomputeTier(externalUserID string) (*models.SpotterProfile, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		prof, err := ensureProfile(tx, externalUserID)
		if err != nil {
			return err
		}
		return recomputeTier(tx, prof, s.now(), s.log)
	})
	if err != nil {
		return nil, err
	}
	return s.EnsureProfile(externalUserID)
}

func recomputeTier(tx *gorm.DB, prof *models.SpotterProfile, now time.Time, log zerolog.Logger) error {
	settled := prof.ApprovedSubmissions + prof.RejectedSubmissions
	rate := 0.0
	if settled > 0 {
		rate = float64(prof.ApprovedSubmissions) / float64(settled)
	}
	recent, err := SubmissionsSince(tx, prof.ExternalUserID, now.UTC().Add(-30*24*time.Hour))
	if err != nil {
		return err
	}

	tier := DetermineTier(rate, recent)
	updates := map[string]interface{}{"approval_rate": rate}
	if string(tier) != prof.Tier {
		updates["tier"] = string(tier)
		if tierRank(tier) > tierRank(SpotterTier(prof.Tier)) {
			updates["last_tier_up_at"] = now
		}
		log.Info().Str("user_id", prof.ExternalUserID).Str("from", prof.Tier).Str("to", string(tier)).Msg("[TIER] spotter re-tiered")
	}
	return tx.Model(prof).Updates(updates).Error
}

func tierRank(t SpotterTier) int {
	switch t {
	case TierElite:
		return 4
	case TierVerified:
		return 3
	case TierLearning:
		return 2
	default:
		return 1
	}
}

type SpotterOverview struct {
	Profile        *models.SpotterProfile `json:"profile"`
	Tier           SpotterTier            `json:"tier"`
	TierLabel      string                 `json:"tier_label"`
	Benefits       TierBenefits           `json:"benefits"`
	SubmittedToday int64                  `json:"submitted_today"`
	RemainingToday int64                  `json:"remaining_today"` // -1 means unlimited
	NextTier       *TierRequirement       `json:"next_tier,omitempty"`
}

func (s *SpotterService) Overview(externalUserID string) (*SpotterOverview, error) {
	prof, err := s.EnsureProfile(externalUserID)
	if err != nil {
		return nil, err
	}
	tier, benefits := LookupTier(prof.Tier)

	today, err := SubmissionsSince(s.DB, externalUserID, startOfDay(s.now()))
	if err != nil {
		return nil, err
	}

	remaining := int64(UnlimitedTrends)
	if benefits.DailyTrendLimit != UnlimitedTrends {
		remaining = int64(benefits.DailyTrendLimit) - today
		if remaining < 0 {
			remaining = 0
		}
	}

	out := &SpotterOverview{
		Profile:        prof,
		Tier:           tier,
		TierLabel:      tier.Label(),
		Benefits:       benefits,
		SubmittedToday: today,
		RemainingToday: remaining,
	}
	if next, ok := NextTier(tier); ok {
		out.NextTier = &next
	}
	return out, nil
}
