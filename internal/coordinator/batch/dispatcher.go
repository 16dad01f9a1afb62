// Package batch implements the Batch Dispatcher (spec.md §4.5):
// bounded-parallel fan-out of up to N intents through the coordinator,
// preserving submission order in the result. Grounded on
// original_source's TransferService.processBatchTransfers
// (CompletableFuture.supplyAsync + join), re-architected per §9's
// design note as an explicit bounded semaphore rather than an
// unbounded future-per-item fan-out — sized to the shared worker
// pool's capacity so batch traffic cannot starve single-request
// dispatch beyond that budget (SPEC_FULL.md §4.5).
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ledgerops/moneymove/internal/coordinator/domain"
	"github.com/ledgerops/moneymove/internal/coordinator/service"
	"github.com/ledgerops/moneymove/internal/errs"
)

const maxBatchSize = 20

type Dispatcher struct {
	coordinator *service.Coordinator
	sem         *semaphore.Weighted
}

// New builds a Dispatcher whose fan-out concurrency is bounded to
// poolCapacity concurrent createTransfer calls.
func New(coordinator *service.Coordinator, poolCapacity int) *Dispatcher {
	if poolCapacity <= 0 {
		poolCapacity = 10
	}
	return &Dispatcher{coordinator: coordinator, sem: semaphore.NewWeighted(int64(poolCapacity))}
}

// ProcessBatch implements spec.md §4.5. A batch-level error is
// returned only for the size violation; every other per-intent
// failure is represented as a FAILED record in its slot so the caller
// never loses positions.
func (d *Dispatcher) ProcessBatch(ctx context.Context, correlationID string, intents []domain.Intent) ([]*domain.TransferRecord, error) {
	if len(intents) == 0 || len(intents) > maxBatchSize {
		return nil, errs.New(errs.KindInvalidRequest, "batch size must be between 1 and 20")
	}

	results := make([]*domain.TransferRecord, len(intents))
	var wg sync.WaitGroup

	for i, intent := range intents {
		i, intent := i, intent
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.sem.Acquire(ctx, 1); err != nil {
				results[i] = failedRecord(intent, "batch dispatch cancelled")
				return
			}
			defer d.sem.Release(1)

			rec, err := d.coordinator.CreateTransfer(ctx, correlationID, intent.IdempotencyKey, intent.FromAccountID, intent.ToAccountID, intent.Amount)
			if err != nil {
				results[i] = failedRecordFromError(intent, err)
				return
			}
			results[i] = rec
		}()
	}

	wg.Wait()
	return results, nil
}

func failedRecord(intent domain.Intent, reason string) *domain.TransferRecord {
	return &domain.TransferRecord{
		IdempotencyKey: intent.IdempotencyKey,
		FromAccountID:  intent.FromAccountID,
		ToAccountID:    intent.ToAccountID,
		Amount:         intent.Amount,
		Status:         domain.StatusFailed,
		ErrorMessage:   reason,
	}
}

func failedRecordFromError(intent domain.Intent, err error) *domain.TransferRecord {
	return failedRecord(intent, err.Error())
}
