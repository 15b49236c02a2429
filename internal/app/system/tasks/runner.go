// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job represents a periodic task. Jobs of one runner are independent periodic
// sources; there is no ordering between them.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// SkipInitial delays the first run by one interval instead of running on start.
	SkipInitial bool
}

// Runner manages periodic job execution. The app owns one runner for global
// housekeeping and each dashboard session owns one for its timers.
type Runner struct {
	logger   *zap.Logger
	jobs     []Job
	wg       sync.WaitGroup
	mu       sync.Mutex
	cancel   context.CancelFunc
	started  bool
	running  atomic.Int32 // Count of currently executing jobs
	jobNames sync.Map     // Track which jobs are currently running
}

// New creates a new task runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{
		logger: logger,
	}
}

// Register adds a job to the runner. Jobs registered after Start are ignored.
func (r *Runner) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.logger.Warn("job registered after start ignored", zap.String("job", job.Name))
		return
	}
	r.jobs = append(r.jobs, job)
}

// Start begins executing all registered jobs. Jobs stop when parent is
// cancelled or Stop is called. Start is a no-op after the first call.
func (r *Runner) Start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.runJob(ctx, job)
	}

	r.logger.Debug("task runner started",
		zap.Int("job_count", len(r.jobs)))
}

// Stop stops all jobs and waits for running ones within the given context's
// deadline. If ctx ends first, it returns ctx.Err().
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Debug("task runner stopped")
		return nil
	case <-ctx.Done():
		var stillRunning []string
		r.jobNames.Range(func(key, _ any) bool {
			stillRunning = append(stillRunning, key.(string))
			return true
		})
		r.logger.Warn("task runner shutdown timed out",
			zap.Strings("jobs_still_running", stillRunning),
			zap.Int32("running_count", r.running.Load()))
		return ctx.Err()
	}
}

// Running returns how many jobs are executing right now.
func (r *Runner) Running() int {
	return int(r.running.Load())
}

func (r *Runner) runJob(ctx context.Context, job Job) {
	defer r.wg.Done()

	if !job.SkipInitial {
		r.executeJob(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.executeJob(ctx, job)
		}
	}
}

// executeJob runs a job and logs the result. A panicking job is logged and
// keeps its schedule.
func (r *Runner) executeJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	r.running.Add(1)
	r.jobNames.Store(job.Name, struct{}{})
	defer func() {
		r.running.Add(-1)
		r.jobNames.Delete(job.Name)
	}()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return job.Run(ctx)
	}()
	if err != nil {
		// Don't log context cancellation as an error during shutdown
		if ctx.Err() != nil {
			r.logger.Debug("job cancelled during shutdown",
				zap.String("job", job.Name),
				zap.Duration("duration", time.Since(start)))
			return
		}
		r.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
}

// RunOnce executes a job immediately (useful for testing or manual triggers).
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	r.mu.Lock()
	jobs := r.jobs
	r.mu.Unlock()
	for _, job := range jobs {
		if job.Name == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("tasks: no job named %q", name)
}
