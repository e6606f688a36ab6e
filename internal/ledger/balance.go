package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/finvault/ledger-service/internal/interfaces"
	"github.com/finvault/ledger-service/internal/models"
)

// accountBalance derives an account's balance from its ledger entries:
// sum of credits minus sum of debits. An account with no entries has a
// balance of zero. Aborted units roll back entirely, so every persisted
// entry belongs to a completed transaction and no status filter is needed.
func accountBalance(ctx context.Context, store interfaces.AtomicStore, accountID string) (decimal.Decimal, error) {
	credits, err := store.SumEntries(ctx, accountID, models.EntryCredit)
	if err != nil {
		return decimal.Zero, err
	}

	debits, err := store.SumEntries(ctx, accountID, models.EntryDebit)
	if err != nil {
		return decimal.Zero, err
	}

	return credits.Sub(debits), nil
}
