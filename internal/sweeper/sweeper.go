// Package sweeper runs the periodic salience decay.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tv7/C-Claw/internal/logging"
	"github.com/tv7/C-Claw/internal/store"
)

// DefaultInterval is the time between scheduled sweeps.
const DefaultInterval = 24 * time.Hour

// ErrSweepInProgress is returned when a sweep is requested while another is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Store decays and prunes memories.
type Store interface {
	DecayAndPrune(ctx context.Context) (*store.SweepResult, error)
}

// Sweeper applies DecayAndPrune at most once at a time.
type Sweeper struct {
	store    Store
	interval time.Duration
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// New creates a Sweeper. A non-positive interval means DefaultInterval.
func New(s Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    s,
		interval: interval,
		sem:      semaphore.NewWeighted(1),
		logger:   logger,
	}
}

// Interval returns the configured sweep interval.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// RunOnce performs one sweep, or returns ErrSweepInProgress without touching
// the store if another sweep has not finished.
func (s *Sweeper) RunOnce(ctx context.Context) (*store.SweepResult, error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrSweepInProgress
	}
	defer s.sem.Release(1)
	return s.store.DecayAndPrune(ctx)
}

// Start sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("sweep failed", logging.ErrorFields(err)...)
	}
}
