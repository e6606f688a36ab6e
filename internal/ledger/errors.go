package ledger

import "errors"

// Validation errors are returned before any write. ErrInsufficientFunds is
// detected inside the atomic unit but still rolls the whole unit back, so
// none of these ever leave partial state behind.
var (
	ErrInvalidAmount     = errors.New("amount must be positive with at most two decimal places")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountFrozen     = errors.New("account is frozen")
	ErrSameAccount       = errors.New("source and destination accounts must differ")
	ErrCurrencyMismatch  = errors.New("accounts use different currencies")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ErrDuplicateIdempotencyKey reports that another transaction already holds
// the requested idempotency key. Stores return it from InsertTransaction;
// the engine resolves it by replaying the winning transaction, so callers
// never see it.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

// StoreError reports that the atomic unit could not commit: I/O error,
// timeout, or a serialization conflict. The unit was rolled back, so the
// operation is safe to retry as a whole.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "ledger store: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
