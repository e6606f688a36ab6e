package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/finvault/ledger-service/internal/models"
)

// LedgerStore is the persistence contract the ledger engine is written
// against, so the actual storage technology is swappable.
//
// Implementations must return ledger.ErrAccountNotFound for unknown
// account ids and order EntriesByAccount oldest first.
type LedgerStore interface {
	// RunAtomic executes fn as a single all-or-nothing unit. The accounts
	// named in accountIDs are locked for the whole unit, so a balance read
	// followed by entry writes cannot race another operation on the same
	// account. Operations on disjoint accounts proceed in parallel. Any
	// error returned by fn aborts every write made through the AtomicStore.
	RunAtomic(ctx context.Context, accountIDs []string, fn func(AtomicStore) error) error

	GetAccount(ctx context.Context, id string) (models.Account, error)
	EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
	TransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, bool, error)

	// CreateAccount is the account registry's write path. The engine itself
	// never creates accounts.
	CreateAccount(ctx context.Context, account models.Account) error
}

// AtomicStore is the view of the store inside one atomic unit.
type AtomicStore interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
	SumEntries(ctx context.Context, accountID string, entryType models.EntryType) (decimal.Decimal, error)
	InsertTransaction(ctx context.Context, tx models.Transaction) error
	InsertLedgerEntry(ctx context.Context, entry models.LedgerEntry) error
	UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) error
}
