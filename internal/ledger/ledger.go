package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finvault/ledger-service/internal/interfaces"
	"github.com/finvault/ledger-service/internal/models"
	"github.com/finvault/ledger-service/internal/models/events"
)

// Engine executes deposits, withdrawals and transfers as atomic units of
// double-entry postings, and derives balances from the resulting entries.
// It performs no internal locking: isolation during the balance-check /
// entry-write window is the store's contract (per-account locks in memory,
// row locks in Postgres), so any number of callers may use one Engine
// concurrently.
type Engine struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher // optional; nil disables events
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine builds an engine over the given store. publisher may be nil
// when no event transport is configured.
func NewEngine(store interfaces.LedgerStore, publisher interfaces.EventPublisher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Deposit credits amount to the destination account. It creates a pending
// transaction and one credit entry, then completes the transaction, all in
// one atomic unit.
func (e *Engine) Deposit(ctx context.Context, destinationID string, amount decimal.Decimal, description, idempotencyKey string) (models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return models.Transaction{}, err
	}

	if tx, ok, err := e.replay(ctx, idempotencyKey); err != nil || ok {
		return tx, err
	}

	var tx models.Transaction
	err := e.store.RunAtomic(ctx, []string{destinationID}, func(s interfaces.AtomicStore) error {
		destination, err := e.activeAccount(ctx, s, destinationID)
		if err != nil {
			return err
		}

		tx = models.Transaction{
			ID:                   uuid.NewString(),
			Type:                 models.TransactionDeposit,
			DestinationAccountID: destination.ID,
			Amount:               amount,
			Currency:             destination.Currency,
			Status:               models.StatusPending,
			Description:          description,
			IdempotencyKey:       idempotencyKey,
			CreatedAt:            e.now(),
		}

		return e.post(ctx, s, &tx,
			entry(tx, destination.ID, models.EntryCredit),
		)
	})
	if err != nil {
		return e.resolveDuplicateKey(ctx, "deposit", idempotencyKey, err)
	}

	e.publishCompleted(ctx, tx)
	return tx, nil
}

// Withdraw debits amount from the source account. The balance check and the
// debit entry share one atomic unit so concurrent withdrawals cannot both
// observe a stale sufficient balance.
func (e *Engine) Withdraw(ctx context.Context, sourceID string, amount decimal.Decimal, description, idempotencyKey string) (models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return models.Transaction{}, err
	}

	if tx, ok, err := e.replay(ctx, idempotencyKey); err != nil || ok {
		return tx, err
	}

	var tx models.Transaction
	err := e.store.RunAtomic(ctx, []string{sourceID}, func(s interfaces.AtomicStore) error {
		source, err := e.activeAccount(ctx, s, sourceID)
		if err != nil {
			return err
		}

		balance, err := accountBalance(ctx, s, source.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		tx = models.Transaction{
			ID:              uuid.NewString(),
			Type:            models.TransactionWithdrawal,
			SourceAccountID: source.ID,
			Amount:          amount,
			Currency:        source.Currency,
			Status:          models.StatusPending,
			Description:     description,
			IdempotencyKey:  idempotencyKey,
			CreatedAt:       e.now(),
		}

		return e.post(ctx, s, &tx,
			entry(tx, source.ID, models.EntryDebit),
		)
	})
	if err != nil {
		return e.resolveDuplicateKey(ctx, "withdrawal", idempotencyKey, err)
	}

	e.publishCompleted(ctx, tx)
	return tx, nil
}

// Transfer moves amount from the source to the destination account as one
// balanced posting: a debit on the source and an equal credit on the
// destination, both owned by a single completed transaction.
func (e *Engine) Transfer(ctx context.Context, sourceID, destinationID string, amount decimal.Decimal, description, idempotencyKey string) (models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return models.Transaction{}, err
	}
	if sourceID == destinationID {
		return models.Transaction{}, ErrSameAccount
	}

	if tx, ok, err := e.replay(ctx, idempotencyKey); err != nil || ok {
		return tx, err
	}

	var tx models.Transaction
	err := e.store.RunAtomic(ctx, []string{sourceID, destinationID}, func(s interfaces.AtomicStore) error {
		source, err := e.activeAccount(ctx, s, sourceID)
		if err != nil {
			return err
		}
		destination, err := e.activeAccount(ctx, s, destinationID)
		if err != nil {
			return err
		}
		if source.Currency != destination.Currency {
			return ErrCurrencyMismatch
		}

		balance, err := accountBalance(ctx, s, source.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		tx = models.Transaction{
			ID:                   uuid.NewString(),
			Type:                 models.TransactionTransfer,
			SourceAccountID:      source.ID,
			DestinationAccountID: destination.ID,
			Amount:               amount,
			Currency:             source.Currency,
			Status:               models.StatusPending,
			Description:          description,
			IdempotencyKey:       idempotencyKey,
			CreatedAt:            e.now(),
		}

		return e.post(ctx, s, &tx,
			entry(tx, source.ID, models.EntryDebit),
			entry(tx, destination.ID, models.EntryCredit),
		)
	})
	if err != nil {
		return e.resolveDuplicateKey(ctx, "transfer", idempotencyKey, err)
	}

	e.publishCompleted(ctx, tx)
	return tx, nil
}

// Balance returns the account's derived balance. The read runs inside an
// atomic unit on the account so it observes a consistent point in time.
func (e *Engine) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := e.store.RunAtomic(ctx, []string{accountID}, func(s interfaces.AtomicStore) error {
		if _, err := s.GetAccount(ctx, accountID); err != nil {
			return err
		}
		b, err := accountBalance(ctx, s, accountID)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return decimal.Zero, e.classify("balance", err)
	}
	return balance, nil
}

// Entries returns the account's ledger, oldest entry first.
func (e *Engine) Entries(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, e.classify("entries", err)
	}

	entries, err := e.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, e.classify("entries", err)
	}
	return entries, nil
}

// post writes the pending transaction and its entries, then marks the
// transaction completed. Pending is written first and completed last so a
// failure at any step aborts the unit with nothing visible.
func (e *Engine) post(ctx context.Context, s interfaces.AtomicStore, tx *models.Transaction, entries ...models.LedgerEntry) error {
	if err := s.InsertTransaction(ctx, *tx); err != nil {
		return err
	}

	for _, en := range entries {
		if err := s.InsertLedgerEntry(ctx, en); err != nil {
			return err
		}
	}

	if err := s.UpdateTransactionStatus(ctx, tx.ID, models.StatusCompleted); err != nil {
		return err
	}
	tx.Status = models.StatusCompleted
	return nil
}

// activeAccount loads an account and rejects frozen ones.
func (e *Engine) activeAccount(ctx context.Context, s interfaces.AtomicStore, id string) (models.Account, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	if account.Status == models.AccountFrozen {
		return models.Account{}, ErrAccountFrozen
	}
	return account, nil
}

// replay returns the previously completed transaction for the idempotency
// key, if any, so retried requests perform no new writes.
func (e *Engine) replay(ctx context.Context, key string) (models.Transaction, bool, error) {
	if key == "" {
		return models.Transaction{}, false, nil
	}

	tx, ok, err := e.store.TransactionByIdempotencyKey(ctx, key)
	if err != nil {
		return models.Transaction{}, false, &StoreError{Op: "idempotency lookup", Err: err}
	}
	if ok {
		e.logger.Info("replayed transaction",
			zap.String("transaction_id", tx.ID),
			zap.String("idempotency_key", key),
		)
	}
	return tx, ok, nil
}

// resolveDuplicateKey handles the race where two same-key requests both miss
// the replay check: the loser's insert fails on the key, so hand back the
// winner's transaction instead of a store failure.
func (e *Engine) resolveDuplicateKey(ctx context.Context, op, key string, err error) (models.Transaction, error) {
	if key != "" && errors.Is(err, ErrDuplicateIdempotencyKey) {
		if tx, ok, rerr := e.replay(ctx, key); rerr == nil && ok {
			return tx, nil
		}
	}
	return models.Transaction{}, e.classify(op, err)
}

func (e *Engine) publishCompleted(ctx context.Context, tx models.Transaction) {
	e.logger.Info("transaction completed",
		zap.String("transaction_id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()),
		zap.String("currency", tx.Currency),
	)

	if e.publisher == nil {
		return
	}

	event := events.TransactionCompleted{
		TransactionID:        tx.ID,
		Type:                 string(tx.Type),
		SourceAccountID:      tx.SourceAccountID,
		DestinationAccountID: tx.DestinationAccountID,
		Amount:               tx.Amount,
		Currency:             tx.Currency,
		OccurredAt:           tx.CreatedAt,
	}

	// The transaction is already committed; a publish failure must not
	// fail the operation.
	if err := e.publisher.Publish(ctx, events.TopicTransactionCompleted, event); err != nil {
		e.logger.Warn("publish transaction event",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
}

// classify passes the engine's own error taxonomy through unchanged and
// wraps anything else as a store failure.
func (e *Engine) classify(op string, err error) error {
	for _, known := range []error{
		ErrInvalidAmount,
		ErrAccountNotFound,
		ErrAccountFrozen,
		ErrSameAccount,
		ErrCurrencyMismatch,
		ErrInsufficientFunds,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}

// validAmount enforces a strictly positive amount at currency scale:
// anything that is not exact at two decimal places is refused. Trailing
// zeros ("25.000") are fine; sub-cent fractions ("0.001") are not.
func validAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func entry(tx models.Transaction, accountID string, entryType models.EntryType) models.LedgerEntry {
	return models.LedgerEntry{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		TransactionID: tx.ID,
		EntryType:     entryType,
		Amount:        tx.Amount,
		CreatedAt:     tx.CreatedAt,
	}
}
