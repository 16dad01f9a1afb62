package api

import "github.com/shopspring/decimal"

// CreateTransferRequest mirrors original_source's
// TransferController.CreateTransferRequest.
type CreateTransferRequest struct {
	FromAccountID int64           `json:"fromAccountId" validate:"required"`
	ToAccountID   int64           `json:"toAccountId" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransferResponse mirrors original_source's
// TransferController.TransferResponse.
type TransferResponse struct {
	TransferID   string `json:"transferId,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type BatchTransferItem struct {
	IdempotencyKey string          `json:"idempotencyKey" validate:"required"`
	FromAccountID  int64           `json:"fromAccountId" validate:"required"`
	ToAccountID    int64           `json:"toAccountId" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
}

type BatchTransferRequest struct {
	Transfers []BatchTransferItem `json:"transfers"`
}

type BatchTransferResponse struct {
	Transfers []TransferResponse `json:"transfers"`
}

type errorResponse struct {
	Error string `json:"error"`
}
