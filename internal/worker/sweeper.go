// Package worker runs background maintenance jobs.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/restaurant-pos-auth/internal/metrics"
)

// ExpiredSweeper deletes revocation entries whose token expired on its own.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper runs the revocation sweep on a cron schedule. Runs never
// overlap; a tick that arrives while a sweep is in progress is skipped.
type Sweeper struct {
	ledger  ExpiredSweeper
	metrics metrics.Recorder
	log     *zap.Logger
	cron    *cron.Cron
	timeout time.Duration
	mu      sync.Mutex
}

func NewSweeper(ledger ExpiredSweeper, rec metrics.Recorder, log *zap.Logger) *Sweeper {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		ledger:  ledger,
		metrics: rec,
		log:     log.Named("sweeper"),
		cron:    cron.New(cron.WithLocation(time.UTC)),
		timeout: time.Minute,
	}
}

// Start schedules the sweep on spec (standard cron syntax or descriptors
// such as "@every 10m") and starts the scheduler.
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Info("revocation sweep scheduled", zap.String("schedule", spec))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep and returns the number of deleted
// entries. Errors are logged, not returned.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	if !s.mu.TryLock() {
		s.log.Debug("sweep already running, skipping")
		return 0
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.ledger.SweepExpired(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.log.Error("revocation sweep failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return 0
	}
	s.metrics.RecordSweep(n, elapsed)
	s.log.Info("revocation sweep done", zap.Int64("deleted", n), zap.Duration("elapsed", elapsed))
	return n
}
