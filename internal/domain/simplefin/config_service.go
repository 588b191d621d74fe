package simplefin

import (
	"context"
	"fmt"
	"log"
)

// DefaultRunHistoryLimit is used when no limit is requested.
const DefaultRunHistoryLimit = 10

// ConfigService manages sync configs and their run history.
type ConfigService struct {
	configs ConfigRepository
	runs    RunRepository
	runtime *Runtime
}

// NewConfigService creates a new sync config service
func NewConfigService(configs ConfigRepository, runs RunRepository, runtime *Runtime) *ConfigService {
	return &ConfigService{configs: configs, runs: runs, runtime: runtime}
}

// Create stores the config, claims its credentials and registers its
// schedule. A failed claim leaves the config stored with its error list and
// returns an error wrapping ErrCredentials.
func (s *ConfigService) Create(ctx context.Context, params CreateConfigParams) (*SyncConfig, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	cfg := &SyncConfig{
		Name:         params.Name,
		ProviderName: params.ProviderName,
		Credentials:  Credentials{SetupToken: params.SetupToken},
		Active:       true,
		Schedule:     params.Schedule,
	}
	if params.Active != nil {
		cfg.Active = *params.Active
	}
	if err := s.configs.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to create sync config: %w", err)
	}
	log.Printf("Created sync config %d (%s) with provider %s", cfg.ID, cfg.Name, cfg.ProviderName)

	if _, err := s.runtime.ValidateSyncConfig(ctx, cfg); err != nil {
		return cfg, err
	}
	if err := s.reschedule(ctx, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Get retrieves a sync config by id
func (s *ConfigService) Get(ctx context.Context, id int64) (*SyncConfig, error) {
	return s.configs.GetByID(ctx, id)
}

// List retrieves all sync configs
func (s *ConfigService) List(ctx context.Context) ([]*SyncConfig, error) {
	return s.configs.List(ctx)
}

// Update applies params. A new setup token discards the claimed credentials so
// the next run claims again. The recurring job follows the new schedule and
// active flag.
func (s *ConfigService) Update(ctx context.Context, id int64, params UpdateConfigParams) (*SyncConfig, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	cfg, err := s.configs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		cfg.Name = *params.Name
	}
	if params.SetupToken != nil && *params.SetupToken != cfg.Credentials.SetupToken {
		cfg.Credentials = Credentials{SetupToken: *params.SetupToken}
	}
	if params.Schedule != nil {
		cfg.Schedule = *params.Schedule
	}
	if params.Active != nil {
		cfg.Active = *params.Active
	}

	if err := s.configs.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to update sync config: %w", err)
	}
	log.Printf("Updated sync config %d (%s)", cfg.ID, cfg.Name)

	if err := s.reschedule(ctx, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *ConfigService) reschedule(ctx context.Context, cfg *SyncConfig) error {
	if !cfg.Active || cfg.Schedule == "" {
		s.runtime.scheduler.Remove(JobID(cfg.ID))
		return nil
	}
	return s.runtime.RunSync(ctx, cfg, RunSyncOptions{OnSchedule: true})
}

// Delete removes the config, its jobs and its run history.
func (s *ConfigService) Delete(ctx context.Context, id int64) error {
	if _, err := s.configs.GetByID(ctx, id); err != nil {
		return err
	}
	s.runtime.Unschedule(id)
	if err := s.configs.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete sync config: %w", err)
	}
	log.Printf("Deleted sync config %d", id)
	return nil
}

// Validate claims credentials for the config if needed.
func (s *ConfigService) Validate(ctx context.Context, id int64) (*SyncConfig, error) {
	cfg, err := s.configs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.runtime.ValidateSyncConfig(ctx, cfg)
}

// Trigger queues a one-off run of the config.
func (s *ConfigService) Trigger(ctx context.Context, id int64, opts RunSyncOptions) (*SyncConfig, error) {
	cfg, err := s.configs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	opts.OnSchedule = false
	if err := s.runtime.RunSync(ctx, cfg, opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListRuns returns the most recent runs of a config, newest first.
func (s *ConfigService) ListRuns(ctx context.Context, configID int64, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = DefaultRunHistoryLimit
	}
	if _, err := s.configs.GetByID(ctx, configID); err != nil {
		return nil, err
	}
	return s.runs.ListByConfig(ctx, configID, limit)
}

// LatestRun returns the newest run of a config.
func (s *ConfigService) LatestRun(ctx context.Context, configID int64) (*SyncRun, error) {
	runs, err := s.ListRuns(ctx, configID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return runs[0], nil
}

// GetRun retrieves a sync run by id
func (s *ConfigService) GetRun(ctx context.Context, id string) (*SyncRun, error) {
	return s.runs.GetByID(ctx, id)
}

// RawResponse returns the captured response of an existing run, once.
func (s *ConfigService) RawResponse(ctx context.Context, runID string) (*SyncRun, []byte, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	data, ok := s.runtime.RawResponse(runID)
	if !ok {
		return run, nil, ErrRawUnavailable
	}
	return run, data, nil
}
