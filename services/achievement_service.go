package services

import (
	"errors"
	"time"

	"trend-spotting-system/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementService struct {
	DB  *gorm.DB
	log zerolog.Logger
}

func NewAchievementService(db *gorm.DB, log zerolog.Logger) *AchievementService {
	return &AchievementService{DB: db, log: log}
}

// SeedAchievementTypes inserts the built-in triggers, leaving existing rows alone.
func (s *AchievementService) SeedAchievementTypes() error {
	for _, trigger := range models.AchievementTriggers {
		t := trigger
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&t).Error; err != nil {
			return err
		}
	}
	return nil
}

// AutoAward checks every trigger against the spotter's counters and returns the
// names of newly awarded achievements.
func (s *AchievementService) AutoAward(externalUserID string) ([]string, error) {
	var prof models.SpotterProfile
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&prof).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var types []models.AchievementType
	if err := s.DB.Find(&types).Error; err != nil {
		return nil, err
	}

	var awarded []string
	for _, t := range types {
		if !meetsThreshold(&prof, t.Threshold) {
			continue
		}
		var count int64
		if err := s.DB.Model(&models.SpotterAchievement{}).
			Where("external_user_id = ? AND achievement_type_id = ?", externalUserID, t.ID).
			Count(&count).Error; err != nil {
			return awarded, err
		}
		if count > 0 {
			continue
		}
		if err := s.DB.Create(&models.SpotterAchievement{
			ExternalUserID:    externalUserID,
			AchievementTypeID: t.ID,
		}).Error; err != nil {
			return awarded, err
		}
		awarded = append(awarded, t.Name)
		s.log.Info().Str("user_id", externalUserID).Str("code", t.Code).Msg("🎖️ [ACHIEVEMENT] awarded")
	}
	return awarded, nil
}

func meetsThreshold(prof *models.SpotterProfile, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		var have int64
		switch key {
		case "total_submissions":
			have = prof.TotalSubmissions
		case "approved_submissions":
			have = prof.ApprovedSubmissions
		case "high_quality_submissions":
			have = prof.HighQualitySubmissions
		case "total_validations":
			have = prof.TotalValidations
		case "best_streak":
			have = int64(prof.BestStreak)
		default:
			return false
		}
		if have < required {
			return false
		}
	}
	return true
}

type EarnedAchievement struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rarity      string    `json:"rarity"`
	AwardedAt   time.Time `json:"awarded_at"`
}

func (s *AchievementService) List(externalUserID string) ([]EarnedAchievement, error) {
	var out []EarnedAchievement
	err := s.DB.Table("spotter_achievements AS sa").
		Select("at.code, at.name, at.description, at.rarity, sa.awarded_at").
		Joins("JOIN achievement_types AS at ON at.id = sa.achievement_type_id").
		Where("sa.external_user_id = ?", externalUserID).
		Order("sa.awarded_at ASC").
		Scan(&out).Error
	return out, err
}
