package api

import "net/http"

func (a *API) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.HealthHandler)

	// Account registry routes
	mux.HandleFunc("POST /accounts", a.CreateAccountHandler)
	mux.HandleFunc("GET /accounts/{id}", a.GetAccountHandler)
	mux.HandleFunc("GET /accounts/{id}/balance", a.GetBalanceHandler)
	mux.HandleFunc("GET /accounts/{id}/ledger", a.GetLedgerHandler)

	// Transaction routes
	mux.HandleFunc("POST /deposits", a.DepositHandler)
	mux.HandleFunc("POST /withdrawals", a.WithdrawalHandler)
	mux.HandleFunc("POST /transfers", a.TransferHandler)

	return a.LoggingMiddleware(mux)
}
