package main

import (
	"context"

	"finsync/internal/app"
	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	*app.Services

	// Handlers
	HealthHandler      *httphandlers.HealthHandler
	SyncConfigHandler  *httphandlers.SyncConfigHandler
	AccountHandler     *httphandlers.AccountHandler
	TransactionHandler *httphandlers.TransactionHandler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	services, err := app.NewServices(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Services:           services,
		HealthHandler:      httphandlers.NewHealthHandler(services.DB),
		SyncConfigHandler:  httphandlers.NewSyncConfigHandler(services.Configs),
		AccountHandler:     httphandlers.NewAccountHandler(services.Accounts, services.Detector, services.Merger),
		TransactionHandler: httphandlers.NewTransactionHandler(services.Transactions),
	}, nil
}
