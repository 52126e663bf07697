package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"price-predicates/internal/metrics"
	"price-predicates/internal/predicate"
	"price-predicates/internal/scheduler"
	"price-predicates/internal/storage"
)

// Reconciler is the part of the predicate manager the sweeper drives.
type Reconciler interface {
	ReconcileExpired(ctx context.Context) (int, error)
	ValidateActive(ctx context.Context) (predicate.SweepResult, error)
}

// Options tune the sweeper.
type Options struct {
	Revalidate bool
	LockKey    int64
}

// Report describes one sweep.
type Report struct {
	At          time.Time
	Expired     int
	Revalidated predicate.SweepResult
	Skipped     bool
}

// Service runs the periodic expiry and revalidation sweep.
type Service struct {
	scheduler  *scheduler.Scheduler
	reconciler Reconciler
	locker     storage.AdvisoryLocker
	opts       Options
	logger     zerolog.Logger

	mu   sync.RWMutex
	last *Report
}

// New constructs the sweeper. When store supports advisory locks only one
// replica sweeps at a time.
func New(opts Options, sched *scheduler.Scheduler, reconciler Reconciler, store predicate.Store, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		reconciler: reconciler,
		locker:     locker,
		opts:       opts,
		logger:     logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run begins the sweep loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick executes a single sweep; it matches scheduler.TickFunc.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	_, err := s.Sweep(ctx, at)
	return err
}

// Sweep expires overdue predicates and, when enabled, revalidates the rest.
func (s *Service) Sweep(ctx context.Context, at time.Time) (report Report, err error) {
	report.At = at
	defer func() {
		result := "ok"
		switch {
		case err != nil:
			result = "error"
		case report.Skipped:
			result = "skipped"
		}
		metrics.SweepRuns.WithLabelValues(result).Inc()
		if err == nil {
			s.remember(report)
		}
	}()

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		s.logger.Debug().Time("tick", at).Msg("skip sweep because advisory lock held elsewhere")
		report.Skipped = true
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	expired, err := s.reconciler.ReconcileExpired(ctx)
	report.Expired = expired
	if err != nil {
		return report, fmt.Errorf("reconcile expired: %w", err)
	}

	if s.opts.Revalidate {
		res, err := s.reconciler.ValidateActive(ctx)
		report.Revalidated = res
		if err != nil {
			return report, fmt.Errorf("revalidate active: %w", err)
		}
	}

	s.logger.Info().Time("tick", at).
		Int("expired", report.Expired).
		Int("validated", report.Revalidated.Validated).
		Int("flipped", report.Revalidated.Flipped).
		Int("failed", report.Revalidated.Failed).
		Msg("sweep completed")
	return report, nil
}

// LastReport returns the most recent completed sweep, if any.
func (s *Service) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

func (s *Service) remember(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
