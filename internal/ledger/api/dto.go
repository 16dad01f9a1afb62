package api

import "github.com/shopspring/decimal"

// CreateAccountRequest mirrors original_source's
// LedgerController.CreateAccountRequest. It carries no validator tags;
// the positive-balance rule is checked by the store.
type CreateAccountRequest struct {
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

type AccountResponse struct {
	ID      int64           `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	Version int64           `json:"version"`
}

// TransferRequest mirrors original_source's LedgerController.TransferRequest.
type TransferRequest struct {
	TransferID    string          `json:"transferId" validate:"required"`
	FromAccountID int64           `json:"fromAccountId" validate:"required"`
	ToAccountID   int64           `json:"toAccountId" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

type TransferResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
