package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTransfer   TransactionType = "transfer"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// CanTransitionTo reports whether the status may move to next.
// Completed and failed are terminal.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s != StatusPending {
		return false
	}
	return next == StatusCompleted || next == StatusFailed
}

// Transaction represents a unit of financial intent. A deposit carries a
// destination account only, a withdrawal a source only, a transfer both.
// Once completed it is an immutable audit record.
type Transaction struct {
	ID                   string            `json:"id"`
	Type                 TransactionType   `json:"type"`
	SourceAccountID      string            `json:"source_account_id,omitempty"`
	DestinationAccountID string            `json:"destination_account_id,omitempty"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             string            `json:"currency"`
	Status               TransactionStatus `json:"status"`
	Description          string            `json:"description,omitempty"`
	IdempotencyKey       string            `json:"-"`
	CreatedAt            time.Time         `json:"created_at"`
}
