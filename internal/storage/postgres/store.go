package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/finvault/ledger-service/internal/interfaces"
	"github.com/finvault/ledger-service/internal/ledger"
	"github.com/finvault/ledger-service/internal/models"
)

// PostgresLedgerStore implements interfaces.LedgerStore over database/sql.
// RunAtomic opens one database transaction and takes row locks on the
// involved accounts for the whole check-then-write window.
type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db}
}

// Open connects to Postgres with pool settings suited to many short
// transactional units, and verifies the connection before returning.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (p *PostgresLedgerStore) RunAtomic(ctx context.Context, accountIDs []string, fn func(interfaces.AtomicStore) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = lockAccounts(ctx, dbTx, uniqueSorted(accountIDs)); err != nil {
		return err
	}

	if err = fn(&atomicUnit{tx: dbTx}); err != nil {
		return err
	}

	err = dbTx.Commit()
	return err
}

// lockAccounts takes row locks on the given account ids for the duration of
// the transaction. The sorted order serializes units touching the same
// account while avoiding lock-cycle deadlocks; disjoint accounts stay free.
func lockAccounts(ctx context.Context, dbTx *sql.Tx, ids []string) error {
	// A malformed id cannot match any row; drop it rather than letting the
	// uuid cast fail the whole unit. The unit's GetAccount reports it as
	// not found.
	valid := ids[:0]
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	ids = valid
	if len(ids) == 0 {
		return nil
	}

	rows, err := dbTx.QueryContext(ctx,
		`SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, id string) (models.Account, error) {
	if !validID(id) {
		return models.Account{}, ledger.ErrAccountNotFound
	}

	const query = `SELECT id, user_name, account_type, currency, status, created_at
	FROM accounts WHERE id = $1`

	return scanAccount(p.db.QueryRowContext(ctx, query, id))
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (id, user_name, account_type, currency, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.UserName, account.Type, account.Currency, account.Status, account.CreatedAt)
	return err
}

func (p *PostgresLedgerStore) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	if !validID(accountID) {
		return nil, ledger.ErrAccountNotFound
	}

	const query = `SELECT id, account_id, transaction_id, entry_type, amount, created_at
	FROM ledger_entries WHERE account_id = $1 ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.TransactionID, &e.EntryType, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresLedgerStore) TransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, bool, error) {
	const query = `SELECT id, type, source_account_id, destination_account_id, amount, currency, status, description, idempotency_key, created_at
	FROM transactions WHERE idempotency_key = $1`

	tx, err := scanTransaction(p.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, err
	}
	return tx, true, nil
}

// atomicUnit exposes the store contract over one open database transaction.
type atomicUnit struct {
	tx *sql.Tx
}

func (u *atomicUnit) GetAccount(ctx context.Context, id string) (models.Account, error) {
	if !validID(id) {
		return models.Account{}, ledger.ErrAccountNotFound
	}

	const query = `SELECT id, user_name, account_type, currency, status, created_at
	FROM accounts WHERE id = $1`

	return scanAccount(u.tx.QueryRowContext(ctx, query, id))
}

func (u *atomicUnit) SumEntries(ctx context.Context, accountID string, entryType models.EntryType) (decimal.Decimal, error) {
	// Served by the (account_id, entry_type) index; see schema.sql.
	const query = `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
	WHERE account_id = $1 AND entry_type = $2`

	var sum decimal.Decimal
	if err := u.tx.QueryRowContext(ctx, query, accountID, entryType).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (u *atomicUnit) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	const query = `INSERT INTO transactions
	(id, type, source_account_id, destination_account_id, amount, currency, status, description, idempotency_key, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := u.tx.ExecContext(ctx, query,
		tx.ID, tx.Type,
		nullString(tx.SourceAccountID), nullString(tx.DestinationAccountID),
		tx.Amount, tx.Currency, tx.Status,
		nullString(tx.Description), nullString(tx.IdempotencyKey),
		tx.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "transactions_idempotency_key_idx" {
		return fmt.Errorf("idempotency key %q: %w", tx.IdempotencyKey, ledger.ErrDuplicateIdempotencyKey)
	}
	return err
}

func (u *atomicUnit) InsertLedgerEntry(ctx context.Context, entry models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries (id, account_id, transaction_id, entry_type, amount, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := u.tx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.TransactionID, entry.EntryType, entry.Amount, entry.CreatedAt)
	return err
}

func (u *atomicUnit) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	// Completed and failed are terminal; the guard refuses to move a
	// transaction out of either.
	const query = `UPDATE transactions SET status = $2 WHERE id = $1 AND status = 'pending'`

	result, err := u.tx.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: no pending transaction to transition to %s", id, status)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserName, &a.Type, &a.Currency, &a.Status, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Account{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return a, nil
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var (
		t                 models.Transaction
		source, dest      sql.NullString
		description, idem sql.NullString
	)
	err := row.Scan(&t.ID, &t.Type, &source, &dest, &t.Amount, &t.Currency, &t.Status, &description, &idem, &t.CreatedAt)
	if err != nil {
		return models.Transaction{}, err
	}
	t.SourceAccountID = source.String
	t.DestinationAccountID = dest.String
	t.Description = description.String
	t.IdempotencyKey = idem.String
	return t, nil
}

// validID reports whether id can be a row in the UUID-keyed tables. A
// malformed id cannot match anything, so callers map it to not-found
// instead of surfacing a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
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

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
var _ interfaces.AtomicStore = (*atomicUnit)(nil)
