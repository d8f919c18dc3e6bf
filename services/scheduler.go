// services/scheduler.go
package services

import (
	"time"

	"trend-spotting-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// StartScheduler runs the 1s streak countdown and the nightly tier
// recompute. Shut it down with the returned scheduler.
func StartScheduler(sessions *SessionRegistry, spotters *SpotterService, log zerolog.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every second: advance streak countdowns
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Second),
		gocron.NewTask(sessions.TickAll),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("streak-tick"),
	); err != nil {
		return nil, err
	}

	// Nightly: re-tier every spotter from settled submissions
	if _, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			var ids []string
			if err := spotters.DB.Model(&models.SpotterProfile{}).Pluck("external_user_id", &ids).Error; err != nil {
				log.Error().Err(err).Msg("[Scheduler] failed to list spotters")
				return
			}
			failed := 0
			for _, id := range ids {
				if _, err := spotters.RecomputeTier(id); err != nil {
					failed++
					log.Error().Err(err).Str("user_id", id).Msg("[Scheduler] tier recompute failed")
				}
			}
			log.Info().Int("spotters", len(ids)).Int("failed", failed).Msg("✅ [Scheduler] nightly tier recompute done")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("tier-recompute"),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
