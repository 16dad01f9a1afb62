// Package service exposes the ledger engine's three public operations
// (createAccount, getAccount, applyTransfer) over the LedgerStore
// boundary, so the HTTP facade and tests depend on an interface
// rather than a concrete Postgres type — the same shape
// punchamoorthee-ledgerops/internal/service/transfer.go establishes,
// pushed one layer further so the transactional SQL lives entirely in
// store and this package only orchestrates + logs.
package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ledgerops/moneymove/internal/ledger/domain"
	"github.com/ledgerops/moneymove/internal/ledger/store"
)

type Engine struct {
	store  store.LedgerStore
	logger *slog.Logger
}

func NewEngine(s store.LedgerStore, logger *slog.Logger) *Engine {
	return &Engine{store: s, logger: logger}
}

func (e *Engine) CreateAccount(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
	acc, err := e.store.CreateAccount(ctx, initialBalance)
	if err != nil {
		e.logger.Warn("create account failed", "error", err)
		return nil, err
	}
	e.logger.Info("account created", "account_id", acc.ID, "initial_balance", acc.Balance.String())
	return acc, nil
}

func (e *Engine) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return e.store.GetAccount(ctx, id)
}

func (e *Engine) ApplyTransfer(ctx context.Context, transferID string, fromID, toID int64, amount decimal.Decimal) (domain.TransferOutcome, error) {
	outcome, err := e.store.ApplyTransfer(ctx, transferID, fromID, toID, amount)
	if err != nil {
		e.logger.Warn("apply transfer rejected or failed",
			"transfer_id", transferID, "from", fromID, "to", toID, "error", err)
		return outcome, err
	}
	if outcome.AlreadyApplied {
		e.logger.Info("apply transfer replay, already applied", "transfer_id", transferID)
	}
	return outcome, nil
}
