package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"finsync/internal/domain/simplefin"
)

// Encryptor seals credentials at rest.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

const syncConfigColumns = `id, name, provider_name, credentials, active, schedule, last_sync, errors`

// SyncConfigRepository implements simplefin.ConfigRepository for PostgreSQL.
// Credentials are stored as encrypted JSON.
type SyncConfigRepository struct {
	db  *DB
	enc Encryptor
}

// NewSyncConfigRepository creates a new PostgreSQL sync config repository
func NewSyncConfigRepository(db *DB, enc Encryptor) *SyncConfigRepository {
	return &SyncConfigRepository{db: db, enc: enc}
}

func (r *SyncConfigRepository) sealCredentials(c simplefin.Credentials) (string, error) {
	if c == (simplefin.Credentials{}) {
		return "", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}
	sealed, err := r.enc.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return sealed, nil
}

func (r *SyncConfigRepository) openCredentials(sealed string) (simplefin.Credentials, error) {
	var c simplefin.Credentials
	if sealed == "" {
		return c, nil
	}
	raw, err := r.enc.Decrypt(sealed)
	if err != nil {
		return c, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return c, nil
}

func (r *SyncConfigRepository) scan(row rowScanner) (*simplefin.SyncConfig, error) {
	var c simplefin.SyncConfig
	var sealed string
	var lastSync sql.NullTime
	var errs []string

	if err := row.Scan(&c.ID, &c.Name, &c.ProviderName, &sealed, &c.Active, &c.Schedule, &lastSync, pq.Array(&errs)); err != nil {
		return nil, err
	}
	creds, err := r.openCredentials(sealed)
	if err != nil {
		return nil, err
	}
	c.Credentials = creds
	c.LastSync = timePtr(lastSync)
	if len(errs) > 0 {
		c.Errors = errs
	}
	return &c, nil
}

// GetByID retrieves a sync config by id
func (r *SyncConfigRepository) GetByID(ctx context.Context, id int64) (*simplefin.SyncConfig, error) {
	c, err := r.scan(r.db.QueryRowContext(ctx, `SELECT `+syncConfigColumns+` FROM sync_configs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, simplefin.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync config: %w", err)
	}
	return c, nil
}

// List retrieves all sync configs
func (r *SyncConfigRepository) List(ctx context.Context) ([]*simplefin.SyncConfig, error) {
	return r.list(ctx, `SELECT `+syncConfigColumns+` FROM sync_configs ORDER BY id`)
}

// ListActive retrieves active sync configs
func (r *SyncConfigRepository) ListActive(ctx context.Context) ([]*simplefin.SyncConfig, error) {
	return r.list(ctx, `SELECT `+syncConfigColumns+` FROM sync_configs WHERE active ORDER BY id`)
}

func (r *SyncConfigRepository) list(ctx context.Context, query string) ([]*simplefin.SyncConfig, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync configs: %w", err)
	}
	defer rows.Close()

	var out []*simplefin.SyncConfig
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a sync config and sets its id
func (r *SyncConfigRepository) Create(ctx context.Context, cfg *simplefin.SyncConfig) error {
	sealed, err := r.sealCredentials(cfg.Credentials)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO sync_configs (name, provider_name, credentials, active, schedule)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, cfg.Name, cfg.ProviderName, sealed, cfg.Active, cfg.Schedule).Scan(&cfg.ID); err != nil {
		return fmt.Errorf("failed to create sync config: %w", err)
	}
	return nil
}

// Update writes the editable fields of a sync config
func (r *SyncConfigRepository) Update(ctx context.Context, cfg *simplefin.SyncConfig) error {
	sealed, err := r.sealCredentials(cfg.Credentials)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_configs SET name = $2, provider_name = $3, credentials = $4, active = $5, schedule = $6 WHERE id = $1`,
		cfg.ID, cfg.Name, cfg.ProviderName, sealed, cfg.Active, cfg.Schedule,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync config: %w", err)
	}
	return expectOneRow(result, simplefin.ErrConfigNotFound)
}

// SetCredentials stores claimed credentials
func (r *SyncConfigRepository) SetCredentials(ctx context.Context, id int64, creds simplefin.Credentials) error {
	sealed, err := r.sealCredentials(creds)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `UPDATE sync_configs SET credentials = $2 WHERE id = $1`, id, sealed)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return expectOneRow(result, simplefin.ErrConfigNotFound)
}

// SetErrors replaces the error list of a sync config
func (r *SyncConfigRepository) SetErrors(ctx context.Context, id int64, errs []string) error {
	if errs == nil {
		errs = []string{}
	}
	result, err := r.db.ExecContext(ctx, `UPDATE sync_configs SET errors = $2 WHERE id = $1`, id, pq.Array(errs))
	if err != nil {
		return fmt.Errorf("failed to set sync config errors: %w", err)
	}
	return expectOneRow(result, simplefin.ErrConfigNotFound)
}

// SetLastSync records when a sync last succeeded
func (r *SyncConfigRepository) SetLastSync(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sync_configs SET last_sync = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}
	return expectOneRow(result, simplefin.ErrConfigNotFound)
}

// Delete removes a sync config; its runs cascade
func (r *SyncConfigRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sync_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sync config: %w", err)
	}
	return expectOneRow(result, simplefin.ErrConfigNotFound)
}

const syncRunColumns = `id, sync_config_id, status, started_at, completed_at, accounts_processed,
	transactions_found, holdings_found, error_message, details`

// SyncRunRepository implements simplefin.RunRepository for PostgreSQL
type SyncRunRepository struct {
	db *DB
}

// NewSyncRunRepository creates a new PostgreSQL sync run repository
func NewSyncRunRepository(db *DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

func scanSyncRun(row rowScanner) (*simplefin.SyncRun, error) {
	var run simplefin.SyncRun
	var status string
	var completedAt sql.NullTime
	var details []byte

	err := row.Scan(
		&run.ID, &run.SyncConfigID, &status, &run.StartedAt, &completedAt, &run.AccountsProcessed,
		&run.TransactionsFound, &run.HoldingsFound, &run.ErrorMessage, &details,
	)
	if err != nil {
		return nil, err
	}
	run.Status = simplefin.RunStatus(status)
	run.CompletedAt = timePtr(completedAt)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &run.Details); err != nil {
			return nil, fmt.Errorf("failed to decode run details: %w", err)
		}
	}
	return &run, nil
}

// Create inserts a run in its initial state
func (r *SyncRunRepository) Create(ctx context.Context, run *simplefin.SyncRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, sync_config_id, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.SyncConfigID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// Finish writes the terminal state of a run
func (r *SyncRunRepository) Finish(ctx context.Context, run *simplefin.SyncRun) error {
	details := []byte("{}")
	if run.Details != nil {
		var err error
		if details, err = json.Marshal(run.Details); err != nil {
			return fmt.Errorf("failed to encode run details: %w", err)
		}
	}
	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	query := `
		UPDATE sync_runs SET
			status = $2, completed_at = $3, accounts_processed = $4, transactions_found = $5,
			holdings_found = $6, error_message = $7, details = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		run.ID, string(run.Status), completedAt, run.AccountsProcessed, run.TransactionsFound,
		run.HoldingsFound, run.ErrorMessage, details,
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	return expectOneRow(result, simplefin.ErrRunNotFound)
}

// GetByID retrieves a run by id
func (r *SyncRunRepository) GetByID(ctx context.Context, id string) (*simplefin.SyncRun, error) {
	run, err := scanSyncRun(r.db.QueryRowContext(ctx, `SELECT `+syncRunColumns+` FROM sync_runs WHERE id::text = $1`, id))
	if err == sql.ErrNoRows {
		return nil, simplefin.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

// ListByConfig retrieves the latest runs of a config
func (r *SyncRunRepository) ListByConfig(ctx context.Context, configID int64, limit int) ([]*simplefin.SyncRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE sync_config_id = $1 ORDER BY started_at DESC LIMIT $2`,
		configID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var out []*simplefin.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
