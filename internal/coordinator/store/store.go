package store

import (
	"context"
	"time"

	"github.com/ledgerops/moneymove/internal/coordinator/domain"
)

// TransferStore is the coordinator's persistence boundary, mirrored
// as an interface for the same reason
// internal/ledger/store.LedgerStore is: fake implementations back the
// service's unit tests without a live database.
type TransferStore interface {
	// FindByIdempotencyKey returns the stored record for key, or nil
	// if none exists yet.
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error)

	// CreateIntent persists a new PENDING record. ErrIdempotencyRace is
	// returned when a concurrent caller won a race to insert the same
	// idempotency_key first; the caller should re-probe.
	CreateIntent(ctx context.Context, rec *domain.TransferRecord) (*domain.TransferRecord, error)

	// FindByTransferID is a pure read by the server-assigned id.
	FindByTransferID(ctx context.Context, transferID string) (*domain.TransferRecord, error)

	// CompleteTransfer transitions transferID to COMPLETED iff it is
	// still PENDING; a record already terminal is left untouched
	// (spec.md §3 lifecycle: "never re-attempted from the terminal
	// state").
	CompleteTransfer(ctx context.Context, transferID string) error

	// FailTransfer transitions transferID to FAILED with reason iff it
	// is still PENDING.
	FailTransfer(ctx context.Context, transferID string, reason string) error

	// ListStalePending returns PENDING records created before
	// olderThan, for the recovery sweep (SPEC_FULL.md §4.4).
	ListStalePending(ctx context.Context, olderThan time.Time) ([]domain.TransferRecord, error)
}
