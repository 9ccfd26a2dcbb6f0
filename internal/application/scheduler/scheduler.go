package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sgmartin/ltdbot/internal/adapters/storage"
)

// Job is one unit of periodic work. It reports how many items it touched.
type Job func(ctx context.Context) (int, error)

// Config bounds the run cadence and the busy-retry policy.
type Config struct {
	Interval     time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration // grows linearly with the attempt number
}

// Scheduler runs a named job on a fixed interval in its own goroutine.
// Runs that fail because the database is locked are retried with a linear
// backoff; any other error ends the run and waits for the next interval.
type Scheduler struct {
	name string
	job  Job
	cfg  Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New builds a scheduler for the job. Zero-value config fields get sane
// defaults: 30m interval, 5 attempts, 500ms base backoff.
func New(name string, job Job, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Scheduler{name: name, job: job, cfg: cfg}
}

// Start launches the loop. The first run fires immediately. Calling Start
// on a scheduler that is already running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx)
	slog.Info("scheduler: started", "job", s.name, "interval", s.cfg.Interval)
}

// Stop cancels the loop and waits up to the given timeout for the current
// run to finish. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("scheduler: stop timed out", "job", s.name)
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.runWithRetry(ctx)
		select {
		case <-ctx.Done():
			slog.Info("scheduler: stopped", "job", s.name)
			return
		case <-ticker.C:
		}
	}
}

// runWithRetry executes the job, retrying only while the store reports a
// locked database.
func (s *Scheduler) runWithRetry(ctx context.Context) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		n, err := s.job(ctx)
		if err == nil {
			slog.Info("scheduler: run complete", "job", s.name, "items", n)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !storage.IsBusy(err) {
			slog.Error("scheduler: run failed", "job", s.name, "err", err)
			return
		}
		if attempt == s.cfg.MaxAttempts {
			slog.Error("scheduler: giving up, database stayed locked",
				"job", s.name, "attempts", attempt)
			return
		}
		wait := time.Duration(attempt) * s.cfg.RetryBackoff
		slog.Warn("scheduler: database locked, retrying",
			"job", s.name, "attempt", attempt, "wait", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// RunNow executes one job run synchronously with the retry policy applied,
// independent of the interval loop.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	var (
		n   int
		err error
	)
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		n, err = s.job(ctx)
		if err == nil || !storage.IsBusy(err) || ctx.Err() != nil {
			break
		}
		if attempt < s.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
			}
		}
	}
	if err != nil {
		return n, fmt.Errorf("scheduler.RunNow: %s: %w", s.name, err)
	}
	return n, nil
}
