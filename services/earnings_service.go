package services

import (
	"errors"
	"fmt"
	"time"

	"trend-spotting-system/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EarningsService struct {
	DB  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

func NewEarningsService(db *gorm.DB, log zerolog.Logger) *EarningsService {
	return &EarningsService{DB: db, log: log, now: time.Now}
}

// pendingEntry builds the ledger row every payout starts as.
func pendingEntry(userID string, kind models.EarningType, p PaymentBreakdown, description string) *models.EarningsLedger {
	return &models.EarningsLedger{
		UserID:      userID,
		Type:        kind,
		Amount:      p.TotalAmount,
		Status:      models.EarningStatusPending,
		Description: description,
		Breakdown:   p.Breakdown,
	}
}

type EarningsSummary struct {
	TodayConfirmed decimal.Decimal         `json:"today_confirmed"`
	TodayPending   decimal.Decimal         `json:"today_pending"`
	TotalConfirmed decimal.Decimal         `json:"total_confirmed"`
	TotalPending   decimal.Decimal         `json:"total_pending"`
	Recent         []models.EarningsLedger `json:"recent"`
}

func (s *EarningsService) Summary(userID string) (*EarningsSummary, error) {
	today := startOfDay(s.now())
	out := &EarningsSummary{}

	var err error
	if out.TodayConfirmed, err = s.sum(userID, models.EarningStatusConfirmed, &today); err != nil {
		return nil, err
	}
	if out.TodayPending, err = s.sum(userID, models.EarningStatusPending, &today); err != nil {
		return nil, err
	}
	if out.TotalConfirmed, err = s.sum(userID, models.EarningStatusConfirmed, nil); err != nil {
		return nil, err
	}
	if out.TotalPending, err = s.sum(userID, models.EarningStatusPending, nil); err != nil {
		return nil, err
	}

	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(20).
		Find(&out.Recent).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// sum adds amounts in Go so the total stays exact.
func (s *EarningsService) sum(userID string, status models.EarningStatus, since *time.Time) (decimal.Decimal, error) {
	q := s.DB.Model(&models.EarningsLedger{}).Where("user_id = ? AND status = ?", userID, status)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var amounts []decimal.Decimal
	if err := q.Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

func (s *EarningsService) List(userID string, page, size int) ([]models.EarningsLedger, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var total int64
	if err := s.DB.Model(&models.EarningsLedger{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []models.EarningsLedger
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&entries).Error
	return entries, total, err
}

// Transition settles a pending entry. Confirmed and rejected are terminal.
func (s *EarningsService) Transition(id string, to models.EarningStatus) (*models.EarningsLedger, error) {
	if to != models.EarningStatusConfirmed && to != models.EarningStatusRejected {
		return nil, fmt.Errorf("%w: status must be confirmed or rejected", ErrMissingField)
	}

	var entry models.EarningsLedger
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return settle(tx, &entry, to, s.now(), s.log)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// settleTrend settles the submission payout tied to a trend, if still pending.
func settleTrend(tx *gorm.DB, trendID string, to models.EarningStatus, now time.Time, log zerolog.Logger) error {
	var entry models.EarningsLedger
	err := tx.Where("trend_id = ? AND type = ? AND status = ?", trendID, models.EarningTypeTrendSubmission, models.EarningStatusPending).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return settle(tx, &entry, to, now, log)
}

func settle(tx *gorm.DB, entry *models.EarningsLedger, to models.EarningStatus, now time.Time, log zerolog.Logger) error {
	// conditional update so two settlers cannot both win
	res := tx.Model(&models.EarningsLedger{}).
		Where("id = ? AND status = ?", entry.ID, models.EarningStatusPending).
		Updates(map[string]interface{}{"status": to, "settled_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	entry.Status = to
	entry.SettledAt = &now

	prof, err := ensureProfile(tx, entry.UserID)
	if err != nil {
		return err
	}
	if to == models.EarningStatusConfirmed {
		if err := tx.Model(prof).Update("total_earned", prof.TotalEarned.Add(entry.Amount)).Error; err != nil {
			return err
		}
	}

	if entry.Type == models.EarningTypeTrendSubmission {
		column := "rejected_submissions"
		if to == models.EarningStatusConfirmed {
			column = "approved_submissions"
		}
		if err := tx.Model(prof).UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
			return err
		}
		if err := tx.First(prof, "id = ?", prof.ID).Error; err != nil {
			return err
		}
		if err := recomputeTier(tx, prof, now, log); err != nil {
			return err
		}
	}

	log.Info().Str("earning_id", entry.ID).Str("user_id", entry.UserID).Str("status", string(to)).
		Str("amount", entry.Amount.String()).Msg("💰 [LEDGER] earning settled")
	return nil
}
