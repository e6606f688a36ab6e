package models

import "time"

type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
)

type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
)

// Account identifies a holder of funds. It carries no balance field:
// an account's balance is always derived from its ledger entries.
type Account struct {
	ID        string        `json:"id"`
	UserName  string        `json:"user_name"`
	Type      AccountType   `json:"account_type"`
	Currency  string        `json:"currency"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
