package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finvault/ledger-service/internal/interfaces"
	"github.com/finvault/ledger-service/internal/ledger"
	"github.com/finvault/ledger-service/internal/models"
)

// API serves the HTTP surface over the ledger engine. Account creation and
// lookup go straight to the store (the account registry role); all money
// movement goes through the engine.
type API struct {
	engine *ledger.Engine
	store  interfaces.LedgerStore
	logger *zap.Logger
}

func NewAPI(engine *ledger.Engine, store interfaces.LedgerStore, logger *zap.Logger) *API {
	return &API{engine: engine, store: store, logger: logger}
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

type createAccountRequest struct {
	UserName string `json:"user_name"`
	Type     string `json:"account_type"`
	Currency string `json:"currency"`
}

type accountResponse struct {
	ID        string          `json:"id"`
	UserName  string          `json:"user_name"`
	Type      string          `json:"account_type"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

type depositRequest struct {
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description"`
}

type withdrawalRequest struct {
	SourceAccountID string          `json:"source_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
}

type transferRequest struct {
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description"`
}

func (a *API) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserName == "" {
		httpError(w, http.StatusBadRequest, "user_name is required")
		return
	}
	accountType := models.AccountType(req.Type)
	if accountType != models.AccountChecking && accountType != models.AccountSavings {
		httpError(w, http.StatusBadRequest, "account_type must be checking or savings")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	account := models.Account{
		ID:        uuid.NewString(),
		UserName:  req.UserName,
		Type:      accountType,
		Currency:  req.Currency,
		Status:    models.AccountActive,
		CreatedAt: time.Now(),
	}
	if err := a.store.CreateAccount(r.Context(), account); err != nil {
		a.logger.Error("create account", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	jsonResponse(w, http.StatusCreated, a.accountWithBalance(r, account))
}

func (a *API) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.store.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, a.accountWithBalance(r, account))
}

func (a *API) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	balance, err := a.engine.Balance(r.Context(), accountID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, struct {
		AccountID string          `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
	}{AccountID: accountID, Balance: balance})
}

func (a *API) GetLedgerHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := a.engine.Entries(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

func (a *API) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := a.engine.Deposit(r.Context(), req.DestinationAccountID, req.Amount, req.Description, idempotencyKey(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, tx)
}

func (a *API) WithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := a.engine.Withdraw(r.Context(), req.SourceAccountID, req.Amount, req.Description, idempotencyKey(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, tx)
}

func (a *API) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := a.engine.Transfer(r.Context(), req.SourceAccountID, req.DestinationAccountID, req.Amount, req.Description, idempotencyKey(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, tx)
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) accountWithBalance(r *http.Request, account models.Account) accountResponse {
	balance, err := a.engine.Balance(r.Context(), account.ID)
	if err != nil {
		a.logger.Warn("derive balance", zap.String("account_id", account.ID), zap.Error(err))
		balance = decimal.Zero
	}
	return accountResponse{
		ID:        account.ID,
		UserName:  account.UserName,
		Type:      string(account.Type),
		Currency:  account.Currency,
		Status:    string(account.Status),
		Balance:   balance,
		CreatedAt: account.CreatedAt,
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses:
// insufficient funds is unprocessable, unknown accounts are 404, other
// validation failures are 400, store failures are 500.
func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		httpError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, ledger.ErrAccountFrozen):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("ledger operation failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func idempotencyKey(r *http.Request) string {
	return r.Header.Get("Idempotency-Key")
}
