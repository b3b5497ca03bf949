// Package scheduler runs the background jobs: invoice polling,
// confirmation refresh and webhook draining.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per-run budget, 0 means no limit
	Run      func(ctx context.Context) error
}

// Scheduler drives a set of jobs on independent tickers until the
// context is cancelled.
type Scheduler struct {
	jobs []Job
	log  zerolog.Logger
	wg   sync.WaitGroup
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		s.log.Warn().Str("job", job.Name).Msg("scheduler: job has no interval, skipping")
		return
	}
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per job. It returns immediately; Stop
// blocks until all runners have exited.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler: started")
}

// Stop waits for all job runners to exit. Cancel the context passed to
// Start first.
func (s *Scheduler) Stop() {
	s.wg.Wait()
	s.log.Info().Msg("scheduler: stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	runCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(runCtx); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name).
			Dur("elapsed", time.Since(start)).
			Msg("scheduler: job run failed")
		return
	}
	s.log.Debug().
		Str("job", job.Name).
		Dur("elapsed", time.Since(start)).
		Msg("scheduler: job run complete")
}
