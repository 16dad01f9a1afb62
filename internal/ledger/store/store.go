package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ledgerops/moneymove/internal/ledger/domain"
)

// LedgerStore is the persistence boundary the engine depends on,
// mirroring the interface-over-implementation split
// Sumukhak22-GopherPay/internal/billing/repository.go uses to keep
// service logic testable against a fake without a live database.
type LedgerStore interface {
	CreateAccount(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ApplyTransfer(ctx context.Context, transferID string, fromID, toID int64, amount decimal.Decimal) (domain.TransferOutcome, error)
}
