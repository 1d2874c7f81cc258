package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CycleRunner runs one aggregation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) domain.Snapshot
}

// Scheduler triggers a cycle immediately and then on every tick. A tick that
// arrives while a cycle is still running is dropped, never queued.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler firing every interval.
func NewScheduler(runner CycleRunner, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("schedule interval must be positive")
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Run schedules cycles until ctx is cancelled, then waits for the in-flight
// cycle to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			s.wg.Wait()
			return nil
		case <-ticker.Chan():
			s.trigger(ctx)
		}
	}
}

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.SchedulerSkippedTicks.Inc()
		s.logger.Warn("previous cycle still running, skipping tick")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("cycle panicked", "panic", r)
			}
		}()
		s.runner.RunCycle(ctx)
	}()
	return true
}
