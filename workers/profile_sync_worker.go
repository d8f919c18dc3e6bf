// workers/profile_sync_worker.go
package workers

import (
	"context"
	"time"

	"trend-spotting-system/models"
	"trend-spotting-system/services"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileSource lists backend profiles changed after since.
type ProfileSource interface {
	FetchProfiles(ctx context.Context, since time.Time) ([]services.RemoteProfile, error)
}

// SpotterProfileSyncWorker mirrors username and tier from the backend's
// profiles table into spotter_profiles.
type SpotterProfileSyncWorker struct {
	db       *gorm.DB
	source   ProfileSource
	interval time.Duration
	log      zerolog.Logger
}

func NewSpotterProfileSyncWorker(db *gorm.DB, source ProfileSource, interval time.Duration, log zerolog.Logger) *SpotterProfileSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SpotterProfileSyncWorker{
		db:       db,
		source:   source,
		interval: interval,
		log:      log,
	}
}

func (w *SpotterProfileSyncWorker) Start(ctx context.Context) {
	w.log.Info().Msg("🔁 [SYNC] Starting spotter profile sync worker (backend → spotter_profiles)…")
	go w.run(ctx)
}

func (w *SpotterProfileSyncWorker) run(ctx context.Context) {
	// Initial sync from the beginning of time
	if _, err := w.SyncOnce(ctx, time.Time{}); err != nil {
		w.log.Warn().Err(err).Msg("⚠️ [SYNC] Initial sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx, w.lastSyncTime()); err != nil {
				w.log.Error().Err(err).Msg("❌ [SYNC] Sync batch failed")
			}
		case <-ctx.Done():
			w.log.Info().Msg("⏹️ [SYNC] Spotter profile sync worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest mirrored profile timestamp, or the epoch.
func (w *SpotterProfileSyncWorker) lastSyncTime() time.Time {
	var last []time.Time
	err := w.db.Model(&models.SpotterProfile{}).
		Where("last_synced_at IS NOT NULL").
		Order("last_synced_at DESC").
		Limit(1).
		Pluck("last_synced_at", &last).Error
	if err != nil || len(last) == 0 || last[0].IsZero() {
		return time.Unix(0, 0)
	}
	return last[0]
}

// SyncOnce pulls one batch and upserts it. It returns how many rows were written.
func (w *SpotterProfileSyncWorker) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	profiles, err := w.source.FetchProfiles(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		w.log.Debug().Time("since", since).Msg("[SYNC] ✅ No profile changes")
		return 0, nil
	}

	var upserted, failed int
	for _, rp := range profiles {
		synced := rp.UpdatedAt
		local := models.SpotterProfile{
			ExternalUserID: rp.ID,
			Username:       rp.Username,
			Tier:           string(services.TierLearning),
			LastSyncedAt:   &synced,
		}
		updateCols := []string{"username", "last_synced_at"}
		if rp.SpotterTier != "" {
			tier, _ := services.LookupTier(rp.SpotterTier)
			local.Tier = string(tier)
			updateCols = append(updateCols, "tier")
		}
		if rp.ApprovalRate != nil {
			local.ApprovalRate = *rp.ApprovalRate
			updateCols = append(updateCols, "approval_rate")
		}

		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns(updateCols),
		}).Create(&local).Error; err != nil {
			failed++
			w.log.Warn().Err(err).Str("external_id", rp.ID).Msg("[SYNC] ⚠️ Failed to upsert spotter profile")
			continue
		}
		upserted++
	}

	w.log.Info().Int("received", len(profiles)).Int("upserted", upserted).Int("errors", failed).Msg("[SYNC] ✅ Synced profiles")
	return upserted, nil
}
