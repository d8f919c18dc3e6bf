package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"trend-spotting-system/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// SubmitTrendInput is a trend as it arrives from the dashboard.
type SubmitTrendInput struct {
	UserID        string
	PostURL       string
	Title         string
	Description   string
	Category      string
	ScreenshotURL string
	ThumbnailURL  string
	HasVideo      bool
	PostedAt      *time.Time
	Views         int64
	Likes         int64
	Comments      int64
	Shares        int64
	Metadata      models.TrendMetadata
}

type TrendEstimate struct {
	Category           Category         `json:"category"`
	CategoryLabel      string           `json:"category_label"`
	CategoryRecognized bool             `json:"category_recognized"`
	Quality            QualityMetrics   `json:"quality"`
	Payment            PaymentBreakdown `json:"payment"`
	DisplayAmount      string           `json:"display_amount"`
}

type SubmissionResult struct {
	Trend     *models.TrendSubmission `json:"trend"`
	Estimate  TrendEstimate           `json:"estimate"`
	EarningID string                  `json:"earning_id"`
	Awarded   []string                `json:"awarded,omitempty"`
}

type SubmissionService struct {
	DB       *gorm.DB
	policy   QualityPolicy
	calc     *PaymentCalculator
	sessions *SessionRegistry
	awards   *AchievementService
	metrics  *Metrics
	log      zerolog.Logger
	now      func() time.Time

	// one writer per spotter so the daily quota check and insert cannot interleave
	userLocks sync.Map
}

func NewSubmissionService(db *gorm.DB, policy QualityPolicy, calc *PaymentCalculator, sessions *SessionRegistry,
	awards *AchievementService, metrics *Metrics, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		DB:       db,
		policy:   policy,
		calc:     calc,
		sessions: sessions,
		awards:   awards,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

func (s *SubmissionService) lockUser(userID string) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (in SubmitTrendInput) qualityInput(cat Category, recognized bool) QualityInput {
	return QualityInput{
		Title:              in.Title,
		Description:        in.Description,
		RawCategory:        in.Category,
		CategoryRecognized: recognized,
		HasScreenshot:      strings.TrimSpace(in.ScreenshotURL) != "",
		HasThumbnail:       strings.TrimSpace(in.ThumbnailURL) != "",
		HasVideo:           in.HasVideo,
		PostedAt:           in.PostedAt,
		Views:              in.Views,
		Likes:              in.Likes,
		Comments:           in.Comments,
		Shares:             in.Shares,
		Metadata:           in.Metadata,
	}
}

// Preview scores and prices a trend for the spotter's tier without storing it.
func (s *SubmissionService) Preview(in SubmitTrendInput) (*TrendEstimate, error) {
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	prof, err := ensureProfile(s.DB, in.UserID)
	if err != nil {
		return nil, err
	}
	multiplier := 1.0
	if snap, ok := s.sessions.Get(in.UserID); ok {
		multiplier = snap.Streak.Multiplier
	}
	est := s.estimate(in, prof.Tier, multiplier)
	return &est, nil
}

func (s *SubmissionService) estimate(in SubmitTrendInput, tier string, multiplier float64) TrendEstimate {
	cat, recognized := NormalizeCategory(in.Category)
	quality := s.policy.Evaluate(in.qualityInput(cat, recognized), s.now())
	payment := s.calc.Estimate(tier, quality.OverallQuality, PaymentBonuses{StreakMultiplier: multiplier})
	return TrendEstimate{
		Category:           cat,
		CategoryLabel:      cat.Label(),
		CategoryRecognized: recognized,
		Quality:            quality,
		Payment:            payment,
		DisplayAmount:      payment.Display(),
	}
}

// SubmitTrend validates, de-duplicates, enforces the tier's daily limit, scores,
// prices and stores a trend with its pending earning in one transaction.
func (s *SubmissionService) SubmitTrend(ctx context.Context, in SubmitTrendInput) (*SubmissionResult, error) {
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	urlKey, err := NormalizeTrendURL(in.PostURL)
	if err != nil {
		s.count("invalid")
		return nil, err
	}

	unlock := s.lockUser(in.UserID)
	defer unlock()

	now := s.now()
	var (
		trend *models.TrendSubmission
		entry *models.EarningsLedger
		est   TrendEstimate
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prof, err := ensureProfile(tx, in.UserID)
		if err != nil {
			return err
		}
		tier, benefits := LookupTier(prof.Tier)

		today, err := SubmissionsSince(tx, in.UserID, startOfDay(now))
		if err != nil {
			return err
		}
		if !benefits.Allows(today) {
			return fmt.Errorf("%w (%s tier: %d per day)", ErrDailyLimitReached, tier, benefits.DailyTrendLimit)
		}

		var dup int64
		if err := tx.Model(&models.TrendSubmission{}).Where("url_key = ?", urlKey).Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return ErrDuplicateSubmission
		}

		multiplier := 1.0
		if snap, ok := s.sessions.Get(in.UserID); ok {
			multiplier = snap.Streak.Multiplier
		}
		est = s.estimate(in, string(tier), multiplier)

		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = strings.TrimSpace(in.Metadata.TrendName)
		}
		trend = &models.TrendSubmission{
			SpotterID:            in.UserID,
			PostURL:              strings.TrimSpace(in.PostURL),
			URLKey:               urlKey,
			Platform:             DetectPlatform(urlKey),
			Title:                title,
			Description:          strings.TrimSpace(in.Description),
			Category:             string(est.Category),
			RawCategory:          in.Category,
			ScreenshotURL:        in.ScreenshotURL,
			ThumbnailURL:         in.ThumbnailURL,
			PostedAt:             in.PostedAt,
			Metadata:             in.Metadata,
			ViewsCount:           in.Views,
			LikesCount:           in.Likes,
			CommentsCount:        in.Comments,
			SharesCount:          in.Shares,
			QualityPolicy:        est.Quality.Policy,
			QualityScore:         est.Quality.OverallQuality,
			MetadataCompleteness: est.Quality.MetadataCompleteness,
			HasScreenshot:        est.Quality.HasScreenshot,
			HasVideo:             est.Quality.HasVideo,
			PaymentAmount:        est.Payment.TotalAmount,
			PaymentBreakdown:     est.Payment.Breakdown,
			ValidationDifficulty: est.Category.ValidationDifficulty(),
			ValidationCount:      0,
			Status:               models.TrendStatusSubmitted,
			Stage:                models.TrendStatusSubmitted,
		}
		if err := tx.Create(trend).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateSubmission
			}
			return err
		}

		trendID := trend.ID
		entry = pendingEntry(in.UserID, models.EarningTypeTrendSubmission, est.Payment, "Trend submission: "+est.Category.Label())
		entry.TrendID = &trendID
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		counters := map[string]interface{}{"total_submissions": gorm.Expr("total_submissions + 1")}
		if est.Quality.OverallQuality >= HighQualityThreshold {
			counters["high_quality_submissions"] = gorm.Expr("high_quality_submissions + 1")
		}
		return tx.Model(prof).UpdateColumns(counters).Error
	})
	if err != nil {
		s.count(Classify(err).String())
		if Classify(err) == KindInternal {
			s.log.Error().Err(err).Str("user_id", in.UserID).Msg("❌ [SUBMIT] failed to store trend")
		}
		return nil, err
	}

	s.sessions.RecordSubmission(in.UserID)

	s.count("accepted")
	if s.metrics != nil {
		s.metrics.SubmissionPayout.Observe(est.Payment.TotalAmount.InexactFloat64())
	}
	s.log.Info().Str("user_id", in.UserID).Str("trend_id", trend.ID).Str("category", trend.Category).
		Float64("quality", trend.QualityScore).Str("amount", est.Payment.TotalAmount.String()).Msg("✅ [SUBMIT] trend accepted")

	awarded, err := s.awards.AutoAward(in.UserID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", in.UserID).Msg("[SUBMIT] achievement check failed")
	}

	return &SubmissionResult{
		Trend:     trend,
		Estimate:  est,
		EarningID: entry.ID,
		Awarded:   awarded,
	}, nil
}

func (s *SubmissionService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(outcome).Inc()
	}
}

func (s *SubmissionService) ListMine(userID string, page, size int) ([]models.TrendSubmission, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var total int64
	if err := s.DB.Model(&models.TrendSubmission{}).Where("spotter_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var trends []models.TrendSubmission
	err := s.DB.Where("spotter_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&trends).Error
	return trends, total, err
}
