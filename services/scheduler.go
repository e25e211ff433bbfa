package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartStatusScheduler runs the tournament status sweep every interval on the
// service clock. Call Shutdown on the returned scheduler to stop it.
func (s *TournamentService) StartStatusScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.UpdateStatusByTime(ctx)
			if err != nil {
				s.Log.Error("scheduled status sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				s.Log.Info("scheduled status sweep", zap.Int("advanced", n))
			}
		}),
		gocron.WithName("tournament-status-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule status sweep: %w", err)
	}

	sched.Start()
	return sched, nil
}
