// Package recovery answers spec.md §9 Open Question 2 ("PENDING
// records whose asynchronous application was in flight when the
// coordinator restarted are orphaned in the source"): a ticker-driven
// sweep that re-dispatches stale PENDING records through the
// idempotent ledger path (SPEC_FULL.md §4.4). The source neither
// performs nor documents this; this package does.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgerops/moneymove/internal/coordinator/service"
	"github.com/ledgerops/moneymove/internal/coordinator/store"
)

type Sweeper struct {
	store       store.TransferStore
	coordinator *service.Coordinator
	interval    time.Duration
	staleAfter  time.Duration
	logger      *slog.Logger
}

func New(s store.TransferStore, coordinator *service.Coordinator, interval, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: s, coordinator: coordinator, interval: interval, staleAfter: staleAfter, logger: logger}
}

// Run blocks, sweeping on every tick until ctx is cancelled. Intended
// to be started in its own goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	threshold := time.Now().Add(-s.staleAfter)
	stale, err := s.store.ListStalePending(ctx, threshold)
	if err != nil {
		s.logger.Error("recovery sweep: list stale pending failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	s.logger.Info("recovery sweep: re-dispatching stale pending transfers", "count", len(stale))
	for _, rec := range stale {
		s.coordinator.Redispatch("recovery-sweep", rec)
	}
}
