package services

import (
	"context"
	"sync"
	"time"

	"trend-spotting-system/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type CategoryStat struct {
	Category   Category `json:"category"`
	Label      string   `json:"label"`
	Count      int64    `json:"count"`
	AvgQuality float64  `json:"avg_quality"`
}

// DashboardSnapshot is the aggregate view sold to enterprise customers.
type DashboardSnapshot struct {
	TotalTrends     int64          `json:"total_trends"`
	ValidatedTrends int64          `json:"validated_trends"`
	Last24h         int64          `json:"last_24h"`
	AvgQuality      float64        `json:"avg_quality"`
	TopCategory     Category       `json:"top_category,omitempty"`
	Categories      []CategoryStat `json:"categories"`
	RefreshedAt     time.Time      `json:"refreshed_at"`
}

// EnterpriseService keeps the latest snapshot in memory. Concurrent refreshes
// share one query.
type EnterpriseService struct {
	DB  *gorm.DB
	log zerolog.Logger
	now func() time.Time

	// RefreshTimeout bounds one shared computation.
	RefreshTimeout time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	snap  *DashboardSnapshot
}

func NewEnterpriseService(db *gorm.DB, log zerolog.Logger) *EnterpriseService {
	return &EnterpriseService{DB: db, log: log, now: time.Now, RefreshTimeout: 10 * time.Second}
}

// Snapshot returns the cached snapshot, computing it on first use.
func (s *EnterpriseService) Snapshot(ctx context.Context) (*DashboardSnapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return s.Refresh(ctx)
}

func (s *EnterpriseService) Refresh(ctx context.Context) (*DashboardSnapshot, error) {
	v, err, shared := s.group.Do("dashboard", func() (interface{}, error) {
		// joined callers must not fail because the first one went away
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.RefreshTimeout)
		defer cancel()
		return s.compute(flightCtx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Msg("[POLL] joined in-flight dashboard refresh")
	}
	snap := v.(*DashboardSnapshot)

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return snap, nil
}

func (s *EnterpriseService) compute(ctx context.Context) (*DashboardSnapshot, error) {
	db := s.DB.WithContext(ctx)
	now := s.now().UTC()
	out := &DashboardSnapshot{RefreshedAt: now}

	if err := db.Model(&models.TrendSubmission{}).Count(&out.TotalTrends).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.TrendSubmission{}).
		Where("status = ?", models.TrendStatusValidated).
		Count(&out.ValidatedTrends).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.TrendSubmission{}).
		Where("created_at >= ?", now.Add(-24*time.Hour)).
		Count(&out.Last24h).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Category   string
		Count      int64
		AvgQuality float64
	}
	if err := db.Model(&models.TrendSubmission{}).
		Select("category, COUNT(*) AS count, AVG(quality_score) AS avg_quality").
		Group("category").
		Order("count DESC, category ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	var weighted float64
	for _, r := range rows {
		cat := Category(r.Category)
		out.Categories = append(out.Categories, CategoryStat{
			Category:   cat,
			Label:      cat.Label(),
			Count:      r.Count,
			AvgQuality: roundTo(r.AvgQuality, 4),
		})
		weighted += r.AvgQuality * float64(r.Count)
	}
	if len(rows) > 0 {
		out.TopCategory = Category(rows[0].Category)
	}
	if out.TotalTrends > 0 {
		out.AvgQuality = roundTo(weighted/float64(out.TotalTrends), 4)
	}
	return out, nil
}
