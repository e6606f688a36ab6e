package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// LedgerEntry is one side of a balanced posting: a single immutable debit
// or credit against one account, owned by exactly one transaction.
type LedgerEntry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	TransactionID string          `json:"transaction_id"`
	EntryType     EntryType       `json:"entry_type"`
	Amount        decimal.Decimal `json:"amount"` // always positive; direction comes from EntryType
	CreatedAt     time.Time       `json:"created_at"`
}

// Signed returns the entry's effect on its account balance:
// positive for credits, negative for debits.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.EntryType == EntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}
