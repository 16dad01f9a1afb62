// Package service implements the Transfer Coordinator (spec.md §4.4):
// idempotent intent creation, transferId synthesis, dispatch through
// the resilient ledger client via the worker pool, and terminal-state
// reconciliation. Grounded on original_source's TransferService.java
// for the overall shape and
// punchamoorthee-ledgerops/internal/service/transfer.go for the
// idempotency-reservation pattern, re-architected per §9's design
// notes: explicit short transactions instead of @Transactional,
// explicit worker-pool submission instead of CompletableFuture
// chaining.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerops/moneymove/internal/coordinator/client"
	"github.com/ledgerops/moneymove/internal/coordinator/domain"
	"github.com/ledgerops/moneymove/internal/coordinator/store"
	"github.com/ledgerops/moneymove/internal/coordinator/worker"
	"github.com/ledgerops/moneymove/internal/errs"
)

type Coordinator struct {
	store  store.TransferStore
	ledger *client.LedgerClient
	pool   *worker.Pool
	logger *slog.Logger
}

func New(s store.TransferStore, ledger *client.LedgerClient, pool *worker.Pool, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: s, ledger: ledger, pool: pool, logger: logger}
}

// RequestHash normalizes the semantically relevant transfer fields
// into a stable hash, used both to detect idempotency-key reuse with
// a mismatched payload (SPEC_FULL.md §4.4, Open Question 1) and to
// compare a batch intent against a prior conflicting one.
func RequestHash(fromID, toID int64, amount decimal.Decimal) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%s", fromID, toID, amount.String())))
	return hex.EncodeToString(sum[:])
}

// CreateTransfer implements spec.md §4.4 steps 1-4.
func (c *Coordinator) CreateTransfer(ctx context.Context, correlationID string, idempotencyKey string, fromID, toID int64, amount decimal.Decimal) (*domain.TransferRecord, error) {
	// Step 1: validation.
	if idempotencyKey == "" {
		return nil, errs.New(errs.KindInvalidRequest, "idempotencyKey is required")
	}
	if amount.Sign() <= 0 {
		return nil, errs.New(errs.KindInvalidRequest, "amount must be positive")
	}
	if fromID == toID {
		return nil, errs.New(errs.KindInvalidRequest, "fromId and toId must differ")
	}

	reqHash := RequestHash(fromID, toID, amount)

	// Step 2: idempotency probe.
	existing, err := c.store.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.RequestHash != reqHash {
			return nil, errs.New(errs.KindIdempotencyConflict,
				"idempotency key reused with a different from/to/amount")
		}
		return existing, nil
	}

	// Step 3: persist intent with a fresh transferId.
	rec := &domain.TransferRecord{
		TransferID:     uuid.NewString(),
		IdempotencyKey: idempotencyKey,
		RequestHash:    reqHash,
		FromAccountID:  fromID,
		ToAccountID:    toID,
		Amount:         amount,
		Status:         domain.StatusPending,
	}

	created, err := c.store.CreateIntent(ctx, rec)
	if errors.Is(err, store.ErrIdempotencyRace) {
		// Lost the race to insert; the winner's record is authoritative.
		winner, findErr := c.store.FindByIdempotencyKey(ctx, idempotencyKey)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, errs.Wrap(errs.KindTransient, "idempotency race resolution failed", err)
		}
		if winner.RequestHash != reqHash {
			return nil, errs.New(errs.KindIdempotencyConflict,
				"idempotency key reused with a different from/to/amount")
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}

	// Step 4: dispatch asynchronously, return PENDING immediately. The
	// task runs on its own background context rather than r.Context()
	// and receives the request's correlation id as an explicit
	// argument for its log lines (§9), so a
	// cancelled/timed-out HTTP request does not retract already
	// persisted intent (§5: "A cancelled createTransfer AFTER the
	// record is persisted does NOT retract the record").
	c.dispatch(correlationID, created)

	return created, nil
}

// dispatch submits the async application step to the worker pool.
func (c *Coordinator) dispatch(correlationID string, rec *domain.TransferRecord) {
	transferID := rec.TransferID
	fromID, toID, amount := rec.FromAccountID, rec.ToAccountID, rec.Amount

	c.pool.Submit(context.Background(), func(ctx context.Context) {
		c.applyOnce(ctx, correlationID, transferID, fromID, toID, amount)
	})
}

// applyOnce is the asynchronous application step, spec.md §4.4.
func (c *Coordinator) applyOnce(ctx context.Context, correlationID, transferID string, fromID, toID int64, amount decimal.Decimal) {
	logger := c.logger.With("request_id", correlationID, "transfer_id", transferID)

	result, err := c.ledger.Transfer(ctx, transferID, fromID, toID, amount)
	if err != nil {
		logger.Error("ledger client call failed unexpectedly", "error", err)
		if failErr := c.store.FailTransfer(ctx, transferID, "internal error dispatching transfer"); failErr != nil {
			logger.Error("failed to persist terminal state", "error", failErr)
		}
		return
	}

	switch result.Outcome {
	case client.Applied:
		if err := c.store.CompleteTransfer(ctx, transferID); err != nil {
			logger.Error("failed to persist completed state", "error", err)
			return
		}
		logger.Info("transfer completed")
	case client.Rejected:
		if err := c.store.FailTransfer(ctx, transferID, result.Reason); err != nil {
			logger.Error("failed to persist rejected state", "error", err)
			return
		}
		logger.Warn("transfer rejected", "reason", result.Reason)
	case client.Unavailable:
		// The documented breaker fallback (spec.md §4.4 and §7): the
		// client never surfaces a 5xx here, the transfer record itself
		// is the channel for reporting the downstream outage.
		if err := c.store.FailTransfer(ctx, transferID, "ledger unavailable"); err != nil {
			logger.Error("failed to persist unavailable state", "error", err)
			return
		}
		logger.Warn("transfer failed, ledger unavailable")
	}
}

// GetTransfer is a pure read by the server-assigned transferId.
func (c *Coordinator) GetTransfer(ctx context.Context, transferID string) (*domain.TransferRecord, error) {
	return c.store.FindByTransferID(ctx, transferID)
}

// Redispatch re-submits a stalled PENDING record to the worker pool
// through the same idempotent path, used by the recovery sweeper
// (SPEC_FULL.md §4.4, Open Question 2). Safe because applyTransfer is
// idempotent on transferId: a record already applied by the ledger
// resolves as alreadyApplied and completes on the next pass.
func (c *Coordinator) Redispatch(correlationID string, rec domain.TransferRecord) {
	c.dispatch(correlationID, &rec)
}
