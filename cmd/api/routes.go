package main

import (
	"log"
	"net/http"

	"finsync/internal/shared/config"
	"finsync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", deps.HealthHandler.HandleHealth)

	// Protected routes
	authMiddleware := middleware.APIToken(cfg.Auth.APITokenHash)
	if cfg.Auth.APITokenHash == "" {
		log.Println("Warning: API_TOKEN_HASH not set, API is unauthenticated")
	}
	protect := func(h http.HandlerFunc) http.Handler { return authMiddleware(h) }

	// Sync configs and runs
	mux.Handle("/api/sync-configs/", protect(deps.SyncConfigHandler.HandleSyncConfigs))
	mux.Handle("/api/sync-configs/{id}", protect(deps.SyncConfigHandler.HandleSyncConfigByID))
	mux.Handle("/api/sync-configs/{id}/run", protect(deps.SyncConfigHandler.HandleRun))
	mux.Handle("/api/sync-configs/{id}/validate", protect(deps.SyncConfigHandler.HandleValidate))
	mux.Handle("/api/sync-configs/{id}/runs", protect(deps.SyncConfigHandler.HandleRuns))
	mux.Handle("/api/sync-runs/{id}/raw", protect(deps.SyncConfigHandler.HandleRawResponse))

	// Accounts
	mux.Handle("/api/accounts/", protect(deps.AccountHandler.HandleListAccounts))
	mux.Handle("/api/accounts/duplicates", protect(deps.AccountHandler.HandleDuplicates))
	mux.Handle("/api/accounts/merge", protect(deps.AccountHandler.HandleMerge))
	mux.Handle("/api/accounts/classify", protect(deps.AccountHandler.HandleClassify))
	mux.Handle("/api/accounts/{id}", protect(deps.AccountHandler.HandleAccountByID))

	// Transactions
	mux.Handle("/api/transactions/", protect(deps.TransactionHandler.HandleTransactions))
	mux.Handle("/api/transactions/{id}", protect(deps.TransactionHandler.HandleTransactionByID))

	// Apply global middleware
	var handler http.Handler = middleware.Logging(mux)
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}
	return handler
}
