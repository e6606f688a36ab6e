package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finvault/ledger-service/internal/ledger"
	"github.com/finvault/ledger-service/internal/models"
	"github.com/finvault/ledger-service/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewMemoryLedgerStore()
	engine := ledger.NewEngine(store, nil, zap.NewNop())
	server := httptest.NewServer(NewAPI(engine, store, zap.NewNop()).Router())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createAccount(t *testing.T, server *httptest.Server) string {
	t.Helper()
	var account accountResponse
	resp := doJSON(t, http.MethodPost, server.URL+"/accounts", map[string]string{
		"user_name":    "alice",
		"account_type": "checking",
	}, &account)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, account.ID)
	return account.ID
}

func TestDepositAndBalanceOverHTTP(t *testing.T) {
	server := newTestServer(t)
	accountID := createAccount(t, server)

	var tx models.Transaction
	resp := doJSON(t, http.MethodPost, server.URL+"/deposits", map[string]any{
		"destination_account_id": accountID,
		"amount":                 "100.00",
	}, &tx)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.StatusCompleted, tx.Status)

	var balance struct {
		AccountID string          `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
	}
	resp = doJSON(t, http.MethodGet, server.URL+"/accounts/"+accountID+"/balance", nil, &balance)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("100.00")))
}

func TestOverdraftMapsToUnprocessable(t *testing.T) {
	server := newTestServer(t)
	accountID := createAccount(t, server)

	resp := doJSON(t, http.MethodPost, server.URL+"/withdrawals", map[string]any{
		"source_account_id": accountID,
		"amount":            "1.00",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUnknownAccountMapsToNotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/accounts/nope/balance", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/deposits", map[string]any{
		"destination_account_id": "nope",
		"amount":                 "1.00",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidationMapsToBadRequest(t *testing.T) {
	server := newTestServer(t)
	accountID := createAccount(t, server)

	resp := doJSON(t, http.MethodPost, server.URL+"/deposits", map[string]any{
		"destination_account_id": accountID,
		"amount":                 "0",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/transfers", map[string]any{
		"source_account_id":      accountID,
		"destination_account_id": accountID,
		"amount":                 "1.00",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIdempotencyKeyHeaderHonored(t *testing.T) {
	server := newTestServer(t)
	accountID := createAccount(t, server)

	deposit := func() models.Transaction {
		body, err := json.Marshal(map[string]any{
			"destination_account_id": accountID,
			"amount":                 "25.00",
		})
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPost, server.URL+"/deposits", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Idempotency-Key", "dep-42")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var tx models.Transaction
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&tx))
		return tx
	}

	first := deposit()
	second := deposit()
	assert.Equal(t, first.ID, second.ID)
}
