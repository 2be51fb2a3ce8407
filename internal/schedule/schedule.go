package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/models"
)

// Source returns the current schedule configuration.
type Source func() (models.Schedule, error)

// Scheduler runs a job at the configured cadence. The configuration is
// re-read before every cycle, so changes apply from the next one.
type Scheduler struct {
	run    func(ctx context.Context) error
	source Source
	logger *slog.Logger

	unit        time.Duration // length of one interval step
	retryDelay  time.Duration // wait after a config read error
	stopTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(run func(ctx context.Context) error, source Source, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		run:         run,
		source:      source,
		logger:      logger.With("component", "scheduler"),
		unit:        time.Minute,
		retryDelay:  5 * time.Minute,
		stopTimeout: 5 * time.Second,
	}
}

// Start launches the loop. It returns false if the loop is already running.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		s.loop(ctx)
	}()
	s.logger.Info("scheduler started")
	return true
}

// Stop cancels the loop and waits a bounded time for it to exit. A run in
// progress is cancelled at its next record boundary.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	select {
	case <-s.done:
		s.logger.Info("scheduler stopped")
	case <-time.After(s.stopTimeout):
		s.logger.Warn("scheduler did not stop in time, leaving run to finish", "timeout", s.stopTimeout)
	}
	s.cancel, s.done = nil, nil
}

// Restart stops the loop and starts it again under ctx.
func (s *Scheduler) Restart(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		sched, err := s.source()
		if err != nil {
			s.logger.Error("read schedule config, retrying", "error", err, "retry_in", s.retryDelay)
			if !sleep(ctx, s.retryDelay) {
				return
			}
			continue
		}

		if sched.Enabled {
			s.logger.Info("scheduled run started", "interval_minutes", sched.Interval)
			if err := s.run(ctx); err != nil {
				s.logger.Error("scheduled run failed", "error", err)
			}
		} else {
			s.logger.Info("scheduled runs are disabled")
		}

		interval := sched.Interval
		if interval < 1 {
			interval = 1
		}
		wait := time.Duration(interval) * s.unit
		s.logger.Debug("next cycle", "in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
