package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerops/moneymove/internal/config"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS transfer_record (
	id              BIGSERIAL PRIMARY KEY,
	transfer_id     TEXT NOT NULL UNIQUE,
	idempotency_key TEXT NOT NULL UNIQUE,
	request_hash    TEXT NOT NULL,
	from_account_id BIGINT NOT NULL,
	to_account_id   BIGINT NOT NULL,
	amount          NUMERIC(20,4) NOT NULL,
	status          TEXT NOT NULL,
	error_message   TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transfer_record_status_created_at ON transfer_record (status, created_at);
`

const dropDDL = `DROP TABLE IF EXISTS transfer_record;`

// RunMigrations mirrors internal/ledger/store's policy handling; see
// that package's comment for why this stands in for full schema
// migration tooling.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, policy config.DDLPolicy) error {
	switch policy {
	case config.DDLNone, config.DDLValidate:
		return nil
	case config.DDLCreateDrop:
		if _, err := pool.Exec(ctx, dropDDL); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		fallthrough
	case config.DDLCreate, config.DDLUpdate:
		if _, err := pool.Exec(ctx, schemaDDL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown ddl policy %q", policy)
	}
}
