// Package store implements the ledger engine's persistence, grounded
// on punchamoorthee-ledgerops/internal/store/postgres.go and
// internal/service/transfer.go for the pgxpool wiring and the
// ordered-locking transaction shape, generalized from int64 minor
// units to decimal.Decimal and from a single combined
// account+idempotency table to the Account / JournalEntry split
// spec.md §3 requires.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerops/moneymove/internal/errs"
	"github.com/ledgerops/moneymove/internal/ledger/domain"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"

	maxTransientAttempts = 3
	transientRetryDelay  = 20 * time.Millisecond
)

// PostgresStore is the ledger engine's LedgerStore implementation.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// CreateAccount persists a new account with a strictly positive
// initial balance and version 0.
func (s *PostgresStore) CreateAccount(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
	if initialBalance.Sign() <= 0 {
		return nil, errs.New(errs.KindInvalidRequest, "initial balance must be positive")
	}

	var acc domain.Account
	err := s.withTransientRetry(ctx, "create_account", func(ctx context.Context) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO account (balance, version, created_at)
			 VALUES ($1, 0, now())
			 RETURNING id, balance, version, created_at`,
			initialBalance,
		).Scan(&acc.ID, &acc.Balance, &acc.Version, &acc.CreatedAt)
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "create account failed", err)
	}
	return &acc, nil
}

// GetAccount is a pure read; it returns (nil, nil) when the id is
// unknown, matching spec.md's "Account?" nullable-return contract.
func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var acc domain.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, balance, version, created_at FROM account WHERE id = $1`, id,
	).Scan(&acc.ID, &acc.Balance, &acc.Version, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "get account failed", err)
	}
	return &acc, nil
}

// ApplyTransfer implements spec.md §4.1 steps 1-8: validation,
// idempotency shortcut, ordered locking, existence/funds checks,
// balance mutation, journal insert, commit.
func (s *PostgresStore) ApplyTransfer(ctx context.Context, transferID string, fromID, toID int64, amount decimal.Decimal) (domain.TransferOutcome, error) {
	// Step 1: input validation, before touching storage.
	if amount.Sign() <= 0 {
		return domain.TransferOutcome{}, errs.New(errs.KindInvalidRequest, "amount must be positive")
	}
	if fromID == toID {
		return domain.TransferOutcome{}, errs.New(errs.KindInvalidRequest, "fromId and toId must differ")
	}
	if transferID == "" {
		return domain.TransferOutcome{}, errs.New(errs.KindInvalidRequest, "transferId is required")
	}

	// Step 2: idempotency shortcut, outside the mutating transaction.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM journal_entry WHERE transfer_id = $1)`, transferID,
	).Scan(&exists); err != nil {
		return domain.TransferOutcome{}, errs.Wrap(errs.KindTransient, "idempotency probe failed", err)
	}
	if exists {
		return domain.TransferOutcome{AlreadyApplied: true}, nil
	}

	var outcome domain.TransferOutcome
	err := s.withTransientRetry(ctx, "apply_transfer", func(ctx context.Context) error {
		o, err := s.applyTransferOnce(ctx, transferID, fromID, toID, amount)
		outcome = o
		return err
	})
	return outcome, err
}

func (s *PostgresStore) applyTransferOnce(ctx context.Context, transferID string, fromID, toID int64, amount decimal.Decimal) (domain.TransferOutcome, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return domain.TransferOutcome{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Step 3: ordered locking, ascending id, deadlock avoidance.
	firstID, secondID := fromID, toID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := lockAccount(ctx, tx, firstID)
	if err != nil {
		return domain.TransferOutcome{}, err
	}
	second, err := lockAccount(ctx, tx, secondID)
	if err != nil {
		return domain.TransferOutcome{}, err
	}

	// Step 4: existence check.
	if first == nil || second == nil {
		return domain.TransferOutcome{}, errs.New(errs.KindAccountNotFound, "one or both accounts not found")
	}

	var from, to *domain.Account
	if first.ID == fromID {
		from, to = first, second
	} else {
		from, to = second, first
	}

	// Step 5: sufficient-funds check; rollback (deferred) releases locks.
	if from.Balance.LessThan(amount) {
		return domain.TransferOutcome{}, errs.New(errs.KindInsufficientFunds,
			fmt.Sprintf("account %d balance %s is less than %s", from.ID, from.Balance, amount))
	}

	// Step 6: apply, bump version (defense-in-depth optimistic marker
	// alongside the pessimistic FOR UPDATE lock already held).
	newFromBalance := from.Balance.Sub(amount)
	newToBalance := to.Balance.Add(amount)

	if err := updateBalance(ctx, tx, from.ID, newFromBalance, from.Version); err != nil {
		return domain.TransferOutcome{}, err
	}
	if err := updateBalance(ctx, tx, to.ID, newToBalance, to.Version); err != nil {
		return domain.TransferOutcome{}, err
	}

	// Step 7: journal, one DEBIT + one CREDIT. The (transfer_id,
	// account_id, type) unique index is the second idempotency line
	// of defense: a concurrent duplicate that raced past step 2 fails
	// here with 23505 and aborts the whole transaction.
	_, err = tx.Exec(ctx,
		`INSERT INTO journal_entry (transfer_id, account_id, amount, type, created_at)
		 VALUES ($1, $2, $3, 'DEBIT', now()), ($1, $4, $3, 'CREDIT', now())`,
		transferID, from.ID, amount, to.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			s.logger.Info("concurrent duplicate transfer detected at journal insert",
				"transfer_id", transferID)
			return domain.TransferOutcome{AlreadyApplied: true}, nil
		}
		return domain.TransferOutcome{}, fmt.Errorf("journal insert: %w", err)
	}

	// Step 8: commit.
	if err := tx.Commit(ctx); err != nil {
		return domain.TransferOutcome{}, classifyCommitError(err)
	}

	s.logger.Info("transfer applied",
		"transfer_id", transferID, "from", from.ID, "to", to.ID, "amount", amount.String())

	return domain.TransferOutcome{Applied: true}, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	var acc domain.Account
	err := tx.QueryRow(ctx,
		`SELECT id, balance, version, created_at FROM account WHERE id = $1 FOR UPDATE`, id,
	).Scan(&acc.ID, &acc.Balance, &acc.Version, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %d: %w", id, err)
	}
	return &acc, nil
}

func updateBalance(ctx context.Context, tx pgx.Tx, id int64, newBalance decimal.Decimal, expectedVersion int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE account SET balance = $1, version = version + 1 WHERE id = $2 AND version = $3`,
		newBalance, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update balance for account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Should be unreachable: the row is already exclusively locked
		// by this transaction. Surfacing as Transient rather than
		// panicking keeps the failure mode consistent with the rest of
		// the taxonomy if it is ever tripped by an operator bypassing
		// the lock discipline.
		return errs.New(errs.KindTransient, fmt.Sprintf("version mismatch updating account %d", id))
	}
	return nil
}

// classifyCommitError maps a serialization failure or deadlock victim
// abort at COMMIT time to Transient, per spec.md §4.1's "Storage-layer
// transient errors ... are retryable internally with bounded
// attempts".
func classifyCommitError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isTransientCode(pgErr.Code) {
		return errs.Wrap(errs.KindTransient, "commit aborted, retriable", err)
	}
	return fmt.Errorf("commit tx: %w", err)
}

func isTransientCode(code string) bool {
	return code == serializationFailure || code == deadlockDetected
}

// withTransientRetry bounds internal retry of storage-layer failures
// that isRetriableErr accepts (deadlock victim, serialization failure,
// errors already classified Transient, a closed transaction, a
// deadline exceeded) at maxTransientAttempts; exceeding the bound
// surfaces Transient to the caller instead of retrying forever. Other
// errors, including connection resets, are returned without retry.
func (s *PostgresStore) withTransientRetry(ctx context.Context, op string, f func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxTransientAttempts; attempt++ {
		err := f(ctx)
		if err == nil {
			return nil
		}
		if !isRetriableErr(err) {
			return err
		}
		lastErr = err
		s.logger.Warn("transient storage failure, retrying",
			"op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(transientRetryDelay * time.Duration(attempt)):
		}
	}
	return errs.Wrap(errs.KindTransient, fmt.Sprintf("%s: retry budget exhausted", op), lastErr)
}

func isRetriableErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientCode(pgErr.Code)
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind == errs.KindTransient
	}
	// Of the errors pgx surfaces without a PgError wrapper, only a
	// closed transaction and a deadline exceeded are retried; other
	// connection errors (such as a network reset) are not.
	return errors.Is(err, pgx.ErrTxClosed) || errors.Is(err, context.DeadlineExceeded)
}
