package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/finvault/ledger-service/internal/interfaces"
	"github.com/finvault/ledger-service/internal/ledger"
	"github.com/finvault/ledger-service/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore
// used in tests and local development. RunAtomic locks the involved accounts
// in sorted id order, so two units on the same account serialize while units
// on disjoint accounts run in parallel, and stages all writes until fn
// returns nil.
type MemoryLedgerStore struct {
	mu           sync.Mutex
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	byIdemKey    map[string]string   // idempotency key -> transaction id
	stagedKeys   map[string]struct{} // keys reserved by units not yet resolved
	entries      []models.LedgerEntry

	lockMu       sync.Mutex
	accountLocks map[string]*sync.Mutex
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:     make(map[string]models.Account),
		transactions: make(map[string]models.Transaction),
		byIdemKey:    make(map[string]string),
		stagedKeys:   make(map[string]struct{}),
		accountLocks: make(map[string]*sync.Mutex),
	}
}

func (m *MemoryLedgerStore) accountLock(accountID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	if _, ok := m.accountLocks[accountID]; !ok {
		m.accountLocks[accountID] = &sync.Mutex{}
	}
	return m.accountLocks[accountID]
}

func (m *MemoryLedgerStore) RunAtomic(ctx context.Context, accountIDs []string, fn func(interfaces.AtomicStore) error) error {
	// Lock accounts in sorted order to avoid deadlocks between units
	// touching overlapping account sets.
	ids := uniqueSorted(accountIDs)
	for _, id := range ids {
		m.accountLock(id).Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			m.accountLock(ids[i]).Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	unit := &atomicUnit{store: m}
	if err := fn(unit); err != nil {
		unit.release()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	unit.commit(m)
	return nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccount(id)
}

func (m *MemoryLedgerStore) getAccount(id string) (models.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; ok {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *MemoryLedgerStore) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Entries are appended in commit order, which is oldest first.
	var result []models.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *MemoryLedgerStore) TransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byIdemKey[key]
	if !ok {
		return models.Transaction{}, false, nil
	}
	return m.transactions[id], true, nil
}

// atomicUnit stages writes for one RunAtomic invocation. Reads see committed
// state plus the unit's own staged writes.
type atomicUnit struct {
	store        *MemoryLedgerStore
	transactions []models.Transaction
	entries      []models.LedgerEntry
	statuses     map[string]models.TransactionStatus
	keys         []string // idempotency keys reserved by this unit
}

func (u *atomicUnit) GetAccount(ctx context.Context, id string) (models.Account, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return u.store.getAccount(id)
}

func (u *atomicUnit) SumEntries(ctx context.Context, accountID string, entryType models.EntryType) (decimal.Decimal, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	sum := decimal.Zero
	for _, e := range u.store.entries {
		if e.AccountID == accountID && e.EntryType == entryType {
			sum = sum.Add(e.Amount)
		}
	}
	for _, e := range u.entries {
		if e.AccountID == accountID && e.EntryType == entryType {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (u *atomicUnit) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if tx.IdempotencyKey != "" {
		// Mirrors the partial unique index the Postgres store relies on:
		// the key is reserved at insert time, held against committed and
		// staged transactions alike, and freed only when the unit resolves.
		if _, ok := u.store.byIdemKey[tx.IdempotencyKey]; ok {
			return fmt.Errorf("idempotency key %q: %w", tx.IdempotencyKey, ledger.ErrDuplicateIdempotencyKey)
		}
		if _, ok := u.store.stagedKeys[tx.IdempotencyKey]; ok {
			return fmt.Errorf("idempotency key %q: %w", tx.IdempotencyKey, ledger.ErrDuplicateIdempotencyKey)
		}
		u.store.stagedKeys[tx.IdempotencyKey] = struct{}{}
		u.keys = append(u.keys, tx.IdempotencyKey)
	}
	u.transactions = append(u.transactions, tx)
	return nil
}

// release frees the unit's key reservations after an abort.
func (u *atomicUnit) release() {
	if len(u.keys) == 0 {
		return
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for _, key := range u.keys {
		delete(u.store.stagedKeys, key)
	}
}

func (u *atomicUnit) InsertLedgerEntry(ctx context.Context, entry models.LedgerEntry) error {
	u.entries = append(u.entries, entry)
	return nil
}

func (u *atomicUnit) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	current, ok := u.lookupStatus(id)
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	if !current.CanTransitionTo(status) {
		return fmt.Errorf("transaction %s: invalid status transition %s -> %s", id, current, status)
	}

	if u.statuses == nil {
		u.statuses = make(map[string]models.TransactionStatus)
	}
	u.statuses[id] = status
	return nil
}

func (u *atomicUnit) lookupStatus(id string) (models.TransactionStatus, bool) {
	if status, ok := u.statuses[id]; ok {
		return status, true
	}
	for _, tx := range u.transactions {
		if tx.ID == id {
			return tx.Status, true
		}
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	tx, ok := u.store.transactions[id]
	return tx.Status, ok
}

// commit applies staged writes; caller holds store.mu.
func (u *atomicUnit) commit(m *MemoryLedgerStore) {
	for _, key := range u.keys {
		delete(m.stagedKeys, key)
	}
	for _, tx := range u.transactions {
		if status, ok := u.statuses[tx.ID]; ok {
			tx.Status = status
		}
		m.transactions[tx.ID] = tx
		if tx.IdempotencyKey != "" {
			m.byIdemKey[tx.IdempotencyKey] = tx.ID
		}
	}
	for id, status := range u.statuses {
		if tx, ok := m.transactions[id]; ok && tx.Status != status {
			tx.Status = status
			m.transactions[id] = tx
		}
	}
	m.entries = append(m.entries, u.entries...)
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
var _ interfaces.AtomicStore = (*atomicUnit)(nil)
