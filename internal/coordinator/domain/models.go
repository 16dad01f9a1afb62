// Package domain holds the transfer coordinator's persisted entity:
// TransferRecord, grounded on original_source's TransferRecord.java
// and generalized to decimal.Decimal amounts.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// TransferRecord is the coordinator's durable, client-facing handle on
// one money-movement attempt. It transitions exactly once from
// PENDING to a terminal status (COMPLETED or FAILED) and is never
// mutated again (spec.md §3, invariant 7).
type TransferRecord struct {
	ID             int64           `json:"id"`
	TransferID     string          `json:"transferId"`
	IdempotencyKey string          `json:"-"`
	RequestHash    string          `json:"-"`
	FromAccountID  int64           `json:"fromAccountId"`
	ToAccountID    int64           `json:"toAccountId"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	CreatedAt      time.Time       `json:"-"`
}

func (t *TransferRecord) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Intent is a single leg of a batch submission (§4.5).
type Intent struct {
	IdempotencyKey string
	FromAccountID  int64
	ToAccountID    int64
	Amount         decimal.Decimal
}
