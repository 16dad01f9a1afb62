// Package store implements the transfer coordinator's persistence: the
// transfer_record table, queried directly by status and age for the
// recovery sweep rather than through a separate dispatch-log table
// (SPEC_FULL.md §3, §4.4). Grounded on
// punchamoorthee-ledgerops/internal/service/transfer.go's
// idempotency-key-reservation pattern, split out of the ledger's
// tables per spec.md's ownership rule: "the two sets of tables MAY
// reside in the same database; they MUST NOT participate in a single
// cross-service transaction".
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerops/moneymove/internal/coordinator/domain"
	"github.com/ledgerops/moneymove/internal/errs"
)

const uniqueViolation = "23505"

// ErrIdempotencyRace signals that a concurrent request won the insert
// race on the same idempotency_key (spec.md §4.4 step 3: "a collision
// here is caught, the probe is retried once").
var ErrIdempotencyRace = errors.New("idempotency key insert race, retry probe")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	return s.scanOne(ctx, `
		SELECT id, transfer_id, idempotency_key, request_hash, from_account_id, to_account_id, amount, status, error_message, created_at
		FROM transfer_record WHERE idempotency_key = $1`, key)
}

func (s *PostgresStore) FindByTransferID(ctx context.Context, transferID string) (*domain.TransferRecord, error) {
	return s.scanOne(ctx, `
		SELECT id, transfer_id, idempotency_key, request_hash, from_account_id, to_account_id, amount, status, error_message, created_at
		FROM transfer_record WHERE transfer_id = $1`, transferID)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg any) (*domain.TransferRecord, error) {
	var rec domain.TransferRecord
	var errMsg *string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&rec.ID, &rec.TransferID, &rec.IdempotencyKey, &rec.RequestHash,
		&rec.FromAccountID, &rec.ToAccountID, &rec.Amount, &rec.Status, &errMsg, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "transfer record lookup failed", err)
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	return &rec, nil
}

func (s *PostgresStore) CreateIntent(ctx context.Context, rec *domain.TransferRecord) (*domain.TransferRecord, error) {
	var out domain.TransferRecord
	err := s.pool.QueryRow(ctx, `
		INSERT INTO transfer_record (transfer_id, idempotency_key, request_hash, from_account_id, to_account_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, transfer_id, idempotency_key, request_hash, from_account_id, to_account_id, amount, status, created_at`,
		rec.TransferID, rec.IdempotencyKey, rec.RequestHash, rec.FromAccountID, rec.ToAccountID, rec.Amount, domain.StatusPending,
	).Scan(&out.ID, &out.TransferID, &out.IdempotencyKey, &out.RequestHash, &out.FromAccountID, &out.ToAccountID, &out.Amount, &out.Status, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrIdempotencyRace
		}
		return nil, errs.Wrap(errs.KindTransient, "intent persistence failed", err)
	}
	return &out, nil
}

func (s *PostgresStore) CompleteTransfer(ctx context.Context, transferID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE transfer_record SET status = $1, error_message = NULL
		WHERE transfer_id = $2 AND status = $3`,
		domain.StatusCompleted, transferID, domain.StatusPending,
	)
	if err != nil {
		return errs.Wrap(errs.KindTransient, "complete transfer failed", err)
	}
	return nil
}

func (s *PostgresStore) FailTransfer(ctx context.Context, transferID string, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE transfer_record SET status = $1, error_message = $2
		WHERE transfer_id = $3 AND status = $4`,
		domain.StatusFailed, reason, transferID, domain.StatusPending,
	)
	if err != nil {
		return errs.Wrap(errs.KindTransient, "fail transfer failed", err)
	}
	return nil
}

func (s *PostgresStore) ListStalePending(ctx context.Context, olderThan time.Time) ([]domain.TransferRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, transfer_id, idempotency_key, request_hash, from_account_id, to_account_id, amount, status, error_message, created_at
		FROM transfer_record WHERE status = $1 AND created_at < $2`,
		domain.StatusPending, olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		var rec domain.TransferRecord
		var errMsg *string
		if err := rows.Scan(&rec.ID, &rec.TransferID, &rec.IdempotencyKey, &rec.RequestHash,
			&rec.FromAccountID, &rec.ToAccountID, &rec.Amount, &rec.Status, &errMsg, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stale pending: %w", err)
		}
		if errMsg != nil {
			rec.ErrorMessage = *errMsg
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
