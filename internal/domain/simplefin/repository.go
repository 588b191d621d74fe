package simplefin

import (
	"context"
	"time"
)

// ConfigRepository defines the interface for sync config data access
type ConfigRepository interface {
	// GetByID returns ErrConfigNotFound when missing.
	GetByID(ctx context.Context, id int64) (*SyncConfig, error)
	List(ctx context.Context) ([]*SyncConfig, error)
	ListActive(ctx context.Context) ([]*SyncConfig, error)
	Create(ctx context.Context, cfg *SyncConfig) error

	// Update writes name, provider, credentials, active and schedule.
	Update(ctx context.Context, cfg *SyncConfig) error

	SetCredentials(ctx context.Context, id int64, creds Credentials) error

	// SetErrors replaces the stored error list; nil clears it.
	SetErrors(ctx context.Context, id int64, errs []string) error

	SetLastSync(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// RunRepository defines the interface for sync run history
type RunRepository interface {
	Create(ctx context.Context, run *SyncRun) error

	// Finish writes the terminal status, counts, details and error of a run.
	Finish(ctx context.Context, run *SyncRun) error

	// GetByID returns ErrRunNotFound when missing.
	GetByID(ctx context.Context, id string) (*SyncRun, error)

	// ListByConfig returns the most recent runs first.
	ListByConfig(ctx context.Context, configID int64, limit int) ([]*SyncRun, error)
}

// TxRunner runs fn inside one database transaction carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
