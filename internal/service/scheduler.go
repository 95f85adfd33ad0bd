package service

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

type PartialCleaner interface {
	RemoveStalePartials(maxAge time.Duration) (int, error)
}

func NewScheduler() (gocron.Scheduler, error) {
	return gocron.NewScheduler()
}

// SchedulePartialCleanup removes abandoned uploads every hour.
func SchedulePartialCleanup(
	scheduler gocron.Scheduler,
	cleaner PartialCleaner,
	maxAge time.Duration,
	logger zerolog.Logger,
) (gocron.Job, error) {
	return scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			removed, err := cleaner.RemoveStalePartials(maxAge)
			if err != nil {
				logger.Error().Err(err).Msg("partial upload cleanup failed")
			}
			if removed > 0 {
				logger.Info().Int("removed", removed).Msg("removed stale partial uploads")
			}
		}),
		gocron.WithName("partial-upload-cleanup"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
}
