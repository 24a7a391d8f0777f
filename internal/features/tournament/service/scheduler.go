package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"lightning-tournament-backend/internal/common/logger"
)

// StartScheduler wires the engine's three recurring ticks. The returned
// scheduler must be shut down on exit so no tick outlives the process.
func StartScheduler(ctx context.Context, engine *Engine) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.CronJob("0 0 * * *", false),
		gocron.NewTask(func() {
			if err := engine.CreateDailyTournament(ctx); err != nil {
				logger.Error().Err(err).Msg("Daily tournament creation failed")
			}
		}),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.CronJob("59 23 * * *", false),
		gocron.NewTask(func() {
			engine.CloseEndedTournaments(ctx)
		}),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(30*time.Minute),
		gocron.NewTask(func() {
			engine.RetryFailedPayouts(ctx)
		}),
	); err != nil {
		return nil, err
	}

	sched.Start()
	logger.Info().Msg("Tournament scheduler started")
	return sched, nil
}
