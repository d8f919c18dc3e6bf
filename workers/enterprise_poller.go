package workers

import (
	"context"
	"time"

	"trend-spotting-system/services"

	"github.com/rs/zerolog"
)

// DashboardRefresher is what the poller drives; EnterpriseService satisfies it.
type DashboardRefresher interface {
	Refresh(ctx context.Context) (*services.DashboardSnapshot, error)
}

// PollEnterpriseDashboard refreshes the enterprise snapshot on a fixed cadence
// until ctx is cancelled. A refresh still running when the next tick fires is
// joined, not duplicated.
func PollEnterpriseDashboard(ctx context.Context, refresher DashboardRefresher, pollInterval time.Duration, log zerolog.Logger) {
	log.Info().Dur("interval", pollInterval).Msg("[POLL] Starting enterprise dashboard polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("[POLL] Enterprise dashboard polling stopped.")
			return
		case <-ticker.C:
			go func() {
				refreshCtx, cancel := context.WithTimeout(ctx, pollInterval)
				defer cancel()

				snap, err := refresher.Refresh(refreshCtx)
				if err != nil {
					log.Error().Err(err).Msg("❌ [POLL] Error refreshing enterprise dashboard")
					return
				}
				log.Debug().Int64("total", snap.TotalTrends).Int64("validated", snap.ValidatedTrends).
					Msg("📥 [POLL] Enterprise dashboard refreshed")
			}()
		}
	}
}
