package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trend-spotting-system/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ConsensusVotes is how many matching votes settle a trend.
const ConsensusVotes = 3

type VoteInput struct {
	UserID     string
	UserToken  string
	TrendID    string
	Vote       VoteType
	Confidence *float64
}

type VoteResult struct {
	TrendID   string           `json:"trend_id"`
	Vote      VoteType         `json:"vote"`
	Payment   PaymentBreakdown `json:"payment"`
	EarningID string           `json:"earning_id"`
	RateLimit RateLimitState   `json:"rate_limit"`
	Settled   string           `json:"settled,omitempty"`
}

type ValidationService struct {
	DB      *gorm.DB
	backend VoteBackend
	limits  *RateLimiterCache
	calc    *PaymentCalculator
	awards  *AchievementService
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewValidationService(db *gorm.DB, backend VoteBackend, limits *RateLimiterCache, calc *PaymentCalculator,
	awards *AchievementService, metrics *Metrics, log zerolog.Logger) *ValidationService {
	return &ValidationService{
		DB:      db,
		backend: backend,
		limits:  limits,
		calc:    calc,
		awards:  awards,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Limit returns the validator's quota, refetching when the cache is stale.
func (s *ValidationService) Limit(ctx context.Context, userID, userToken string) (RateLimitState, error) {
	if userID == "" {
		return RateLimitState{}, ErrUnauthenticated
	}
	limiter := s.limits.For(userID)
	if limiter.NeedsRefresh(s.now()) {
		state, err := s.backend.CheckRateLimit(ctx, userToken, userID)
		if err != nil {
			return RateLimitState{}, err
		}
		limiter.Reconcile(state)
	}
	return limiter.State(), nil
}

// CastVote checks the local quota, submits the vote, then books the validator's
// reward and updates the trend's tallies.
func (s *ValidationService) CastVote(ctx context.Context, in VoteInput) (*VoteResult, error) {
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if in.TrendID == "" {
		return nil, fmt.Errorf("%w: trend_id", ErrMissingField)
	}
	if in.Vote != VoteVerify && in.Vote != VoteReject {
		return nil, fmt.Errorf("%w: vote must be verify or reject", ErrMissingField)
	}

	var trend models.TrendSubmission
	if err := s.DB.WithContext(ctx).First(&trend, "id = ?", in.TrendID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if trend.SpotterID == in.UserID {
		return nil, fmt.Errorf("%w: you cannot validate your own trend", ErrVoteRejected)
	}

	limiter := s.limits.For(in.UserID)
	if _, err := s.Limit(ctx, in.UserID, in.UserToken); err != nil {
		return nil, err
	}
	if !limiter.CanValidate() {
		s.count("limited")
		return nil, ErrRateLimitReached
	}

	if err := s.backend.CastTrendVote(ctx, in.UserToken, in.TrendID, in.Vote); err != nil {
		if errors.Is(err, ErrRateLimitReached) {
			// local cache was optimistic; the backend is the truth
			limiter.MarkExhausted()
		}
		s.count(Classify(err).String())
		s.log.Warn().Err(err).Str("user_id", in.UserID).Str("trend_id", in.TrendID).Msg("[VOTE] vote not accepted")
		return nil, err
	}
	limiter.Consume()

	confidence := 0.5
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	payment := s.calc.ValidationReward(trend.ValidationDifficulty, confidence)

	result := &VoteResult{
		TrendID:   in.TrendID,
		Vote:      in.Vote,
		Payment:   payment,
		RateLimit: limiter.State(),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		column := "reject_count"
		if in.Vote == VoteVerify {
			column = "approve_count"
		}
		if err := tx.Model(&models.TrendSubmission{}).Where("id = ?", trend.ID).UpdateColumns(map[string]interface{}{
			"validation_count": gorm.Expr("validation_count + 1"),
			column:             gorm.Expr(column + " + 1"),
		}).Error; err != nil {
			return err
		}
		if err := tx.First(&trend, "id = ?", trend.ID).Error; err != nil {
			return err
		}

		trendID := trend.ID
		entry := pendingEntry(in.UserID, models.EarningTypeValidation, payment, "Trend validation")
		entry.TrendID = &trendID
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		result.EarningID = entry.ID

		prof, err := ensureProfile(tx, in.UserID)
		if err != nil {
			return err
		}
		if err := tx.Model(prof).UpdateColumn("total_validations", gorm.Expr("total_validations + 1")).Error; err != nil {
			return err
		}

		return s.applyConsensus(tx, &trend, result)
	})
	if err != nil {
		// the vote itself is already recorded upstream; only local bookkeeping failed
		s.log.Error().Err(err).Str("user_id", in.UserID).Str("trend_id", in.TrendID).Msg("❌ [VOTE] failed to record vote locally")
		return nil, err
	}

	s.count("accepted")
	s.log.Info().Str("user_id", in.UserID).Str("trend_id", in.TrendID).Str("vote", string(in.Vote)).
		Str("amount", payment.TotalAmount.String()).Msg("🗳️ [VOTE] vote accepted")

	if _, err := s.awards.AutoAward(in.UserID); err != nil {
		s.log.Error().Err(err).Str("user_id", in.UserID).Msg("[VOTE] achievement check failed")
	}
	return result, nil
}

// applyConsensus settles a submitted trend once one side reaches ConsensusVotes.
func (s *ValidationService) applyConsensus(tx *gorm.DB, trend *models.TrendSubmission, result *VoteResult) error {
	if trend.Status != models.TrendStatusSubmitted {
		return nil
	}
	var status string
	var settleTo models.EarningStatus
	switch {
	case trend.ApproveCount >= ConsensusVotes:
		status, settleTo = models.TrendStatusValidated, models.EarningStatusConfirmed
	case trend.RejectCount >= ConsensusVotes:
		status, settleTo = models.TrendStatusRejected, models.EarningStatusRejected
	default:
		return nil
	}

	if err := tx.Model(&models.TrendSubmission{}).Where("id = ?", trend.ID).
		Updates(map[string]interface{}{"status": status, "stage": status}).Error; err != nil {
		return err
	}
	if err := settleTrend(tx, trend.ID, settleTo, s.now(), s.log); err != nil {
		return err
	}
	result.Settled = status
	return nil
}

func (s *ValidationService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Votes.WithLabelValues(outcome).Inc()
	}
}
