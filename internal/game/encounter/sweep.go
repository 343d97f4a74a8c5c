package encounter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweeper periodically expires active encounters whose ExpiresAt has passed.
//
// Invariant: at most one sweep runs at a time.
type Sweeper struct {
	coord       *Coordinator
	interval    time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewSweeper returns a sweeper that checks for expired encounters every interval.
//
// Precondition: interval must be > 0; coord and logger must be non-nil.
func NewSweeper(coord *Coordinator, interval time.Duration, concurrency int, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		panic("encounter.NewSweeper: interval must be > 0")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sweeper{
		coord:       coord,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run sweeps once per interval until ctx is cancelled.
//
// Postcondition: Returns nil when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce expires every encounter currently past its expiry.
//
// Postcondition: Returns the number of encounters this call moved to timed_out.
// Per-encounter failures are logged; only the lookup failure is returned.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	candidates, err := s.coord.FindExpiredRaids(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired encounters: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, rec := range candidates {
		g.Go(func() error {
			_, transitioned, err := s.coord.expire(gctx, rec.SessionID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Error("expiring encounter",
					zap.String("session_id", rec.SessionID),
					zap.Error(err),
				)
				return nil
			}
			if transitioned {
				count.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(count.Load()), err
	}
	s.logger.Info("expiry sweep complete",
		zap.Int("candidates", len(candidates)),
		zap.Int64("expired", count.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return int(count.Load()), nil
}
