// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reaper closes dashboard sessions that have been idle for too long.
type Reaper interface {
	Reap(ctx context.Context, idle time.Duration) int
}

// SessionReaperJob creates a job that closes sessions with no attached
// client for longer than idle.
func SessionReaperJob(r Reaper, idle time.Duration, logger *zap.Logger) Job {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	return Job{
		Name:        "session-reaper",
		Interval:    interval,
		SkipInitial: true,
		Run: func(ctx context.Context) error {
			if n := r.Reap(ctx, idle); n > 0 {
				logger.Info("closed idle dashboard sessions",
					zap.Int("count", n),
					zap.Duration("idle", idle))
			}
			return nil
		},
	}
}

// Post returns a job that calls post on every tick. Session timers are all of
// this shape: the tick only enqueues an event for the session loop.
func Post(name string, interval time.Duration, skipInitial bool, post func(now time.Time)) Job {
	return Job{
		Name:        name,
		Interval:    interval,
		SkipInitial: skipInitial,
		Run: func(context.Context) error {
			post(time.Now())
			return nil
		},
	}
}
