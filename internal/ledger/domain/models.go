// Package domain holds the ledger engine's persisted entity types:
// Account and JournalEntry, grounded on
// punchamoorthee-ledgerops/internal/domain/models.go but widened to
// decimal.Decimal balances and the DEBIT/CREDIT entry type spec.md
// requires (the teacher used int64 minor units and untyped deltas).
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a single ledger balance. Balance and Version are mutated
// only inside the ledger engine's applyTransfer transaction.
type Account struct {
	ID        int64           `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
}

// EntryType distinguishes the two legs of a transfer's journal pair.
type EntryType string

const (
	Debit  EntryType = "DEBIT"
	Credit EntryType = "CREDIT"
)

// JournalEntry is one append-only leg of a double-entry transfer. The
// pair (transferID, one DEBIT + one CREDIT of equal Amount) is the
// unit of ledger idempotency: the store enforces uniqueness on
// (transfer_id, account_id, type).
type JournalEntry struct {
	ID         int64           `json:"id"`
	TransferID string          `json:"transfer_id"`
	AccountID  int64           `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Type       EntryType       `json:"type"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransferOutcome is the result of applyTransfer: Applied means this
// call performed the debit/credit; AlreadyApplied means a prior call
// with the same transferID had already done so and this call is a
// safe no-op, per spec.md §4.1 step 2.
type TransferOutcome struct {
	Applied        bool
	AlreadyApplied bool
}
