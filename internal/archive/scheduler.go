package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"rumbo/internal/platform/config"
	"rumbo/internal/platform/joblock"
)

// lockName identifies the sweep in the job lock namespace. One name, one
// concurrent run, across however many workers are flagged.
const lockName = "archive:sweep"

// ErrRunInProgress is returned when a sweep is requested while another one
// holds the lock. Scheduled runs skip rather than queue.
var ErrRunInProgress = errors.New("archival sweep already in progress")

// Scheduler runs the sweep on a fixed schedule pinned to a time zone, with
// overlap prevented cooperatively through the job lock.
type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	lock    joblock.Locker
	logger  *slog.Logger
	lockTTL time.Duration

	running atomic.Bool

	mu   sync.Mutex
	last *Summary
}

// NewScheduler constructs a scheduler from the archive configuration.
func NewScheduler(runner *Runner, lock joblock.Locker, logger *slog.Logger, cfg config.Archive) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load archive timezone %q: %w", cfg.Timezone, err)
	}

	s := &Scheduler{
		runner:  runner,
		lock:    lock,
		logger:  logger,
		lockTTL: cfg.LockTTL,
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.Schedule, s.scheduledRun); err != nil {
		return nil, fmt.Errorf("register archive schedule %q: %w", cfg.Schedule, err)
	}
	s.cron = c
	return s, nil
}

// Start begins the schedule. Call only on the designated archive worker.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("archive scheduler started")
}

// Stop halts the schedule and returns a context that is done once any
// in-flight run has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) scheduledRun() {
	if _, err := s.Trigger(context.Background()); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("archival sweep skipped, previous run still in progress")
			return
		}
		s.logger.Error("archival sweep failed", "error", err)
	}
}

// Trigger runs one sweep now, subject to the same overlap rules as the
// schedule. Returns ErrRunInProgress when another run holds the lock.
func (s *Scheduler) Trigger(ctx context.Context) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	acquired, err := s.lock.Acquire(ctx, lockName, s.lockTTL)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return Summary{}, ErrRunInProgress
	}
	defer func() {
		if err := s.lock.Release(ctx, lockName); err != nil {
			s.logger.Warn("release sweep lock failed, TTL will reclaim it", "error", err)
		}
	}()

	summary, runErr := s.runner.Run(ctx)

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	return summary, runErr
}

// LastRun returns the most recent sweep summary, or nil before the first run.
func (s *Scheduler) LastRun() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}
