package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finvault/ledger-service/internal/ledger"
)

// Account ids are UUID columns, so a malformed id must come back as
// not-found instead of a cast error. These paths return before touching
// the database.
func TestMalformedIDsMapToNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewPostgresLedgerStore(nil)

	_, err := store.GetAccount(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = store.EntriesByAccount(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	unit := &atomicUnit{}
	_, err = unit.GetAccount(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("b5bcedbc-9f1a-4d4e-a2a7-4eabb4397c3f"))
	assert.False(t, validID(""))
	assert.False(t, validID("nope"))
	assert.False(t, validID("b5bcedbc-9f1a-4d4e-a2a7"))
}
