package simplefin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// JobScheduler registers jobs by id. Registering an id that already exists
// replaces the previous job.
type JobScheduler interface {
	// ScheduleCron runs job on every tick of a standard 5-field cron spec.
	ScheduleCron(id, spec string, job func(ctx context.Context) error) error
	// ScheduleNow runs job once, as soon as a worker is free.
	ScheduleNow(id string, job func(ctx context.Context) error) error
	Remove(id string)
}

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context, cfg *SyncConfig, opts RunOptions) (*SyncRun, error)
}

// RunSyncOptions selects how RunSync triggers a run.
type RunSyncOptions struct {
	// OnSchedule registers the config's cron schedule instead of running now.
	// Ignored when the config has no schedule.
	OnSchedule bool
	FromDate   *time.Time
	CaptureRaw bool
}

// Runtime owns the process-wide sync state: the job scheduler, the raw
// response cache and the set of configs with a run in progress. One is built
// at startup and shared by the HTTP layer and the jobs.
type Runtime struct {
	configs   ConfigRepository
	runner    Runner
	creds     *CredentialService
	scheduler JobScheduler
	raw       *RawResponseCache

	mu      sync.Mutex
	running map[int64]struct{}
}

// NewRuntime creates a new sync runtime
func NewRuntime(configs ConfigRepository, runner Runner, creds *CredentialService, scheduler JobScheduler, raw *RawResponseCache) *Runtime {
	return &Runtime{
		configs:   configs,
		runner:    runner,
		creds:     creds,
		scheduler: scheduler,
		raw:       raw,
		running:   make(map[int64]struct{}),
	}
}

// JobID is the scheduler id of a config's recurring job.
func JobID(configID int64) string {
	return fmt.Sprintf("sync:%d", configID)
}

// OnceJobID is the scheduler id of a config's one-off job.
func OnceJobID(configID int64) string {
	return JobID(configID) + ":once"
}

// RunSync registers the config's recurring job when opts.OnSchedule is set and
// the config has a schedule; otherwise it queues a one-off run. A one-off
// request for a config that is already running fails with ErrSyncInProgress.
func (r *Runtime) RunSync(ctx context.Context, cfg *SyncConfig, opts RunSyncOptions) error {
	job := r.job(cfg.ID, RunOptions{FromDate: opts.FromDate, CaptureRaw: opts.CaptureRaw})

	if opts.OnSchedule && cfg.Schedule != "" {
		if err := r.scheduler.ScheduleCron(JobID(cfg.ID), cfg.Schedule, job); err != nil {
			return fmt.Errorf("failed to schedule sync %d: %w", cfg.ID, err)
		}
		log.Printf("Sync %d (%s): scheduled recurring sync with schedule %q", cfg.ID, cfg.Name, cfg.Schedule)
		return nil
	}

	if r.InProgress(cfg.ID) {
		return ErrSyncInProgress
	}
	if err := r.scheduler.ScheduleNow(OnceJobID(cfg.ID), job); err != nil {
		return fmt.Errorf("failed to queue sync %d: %w", cfg.ID, err)
	}
	log.Printf("Sync %d (%s): queued one-off sync", cfg.ID, cfg.Name)
	return nil
}

// job reloads the config when it fires so it sees the latest credentials,
// last sync time and active flag.
func (r *Runtime) job(configID int64, opts RunOptions) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cfg, err := r.configs.GetByID(ctx, configID)
		if err != nil {
			return fmt.Errorf("failed to load sync config %d: %w", configID, err)
		}
		if !cfg.Active {
			log.Printf("Warning: sync %d (%s) inactive, skipping", cfg.ID, cfg.Name)
			return nil
		}
		log.Printf("Sync %d (%s): running (provider %s)", cfg.ID, cfg.Name, cfg.ProviderName)
		if _, err := r.Execute(ctx, cfg, opts); err != nil {
			return fmt.Errorf("sync %d (%s) failed: %w", cfg.ID, cfg.Name, err)
		}
		return nil
	}
}

// Execute runs a sync synchronously under the in-progress guard.
func (r *Runtime) Execute(ctx context.Context, cfg *SyncConfig, opts RunOptions) (*SyncRun, error) {
	if !r.acquire(cfg.ID) {
		return nil, ErrSyncInProgress
	}
	defer r.release(cfg.ID)
	return r.runner.Run(ctx, cfg, opts)
}

// InProgress reports whether a run for the config is executing.
func (r *Runtime) InProgress(configID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[configID]
	return ok
}

func (r *Runtime) acquire(configID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[configID]; ok {
		return false
	}
	r.running[configID] = struct{}{}
	return true
}

func (r *Runtime) release(configID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, configID)
}

// Unschedule removes both the recurring and the pending one-off job.
func (r *Runtime) Unschedule(configID int64) {
	r.scheduler.Remove(JobID(configID))
	r.scheduler.Remove(OnceJobID(configID))
}

// ValidateSyncConfig claims credentials for the config if it has none yet and
// returns the updated config.
func (r *Runtime) ValidateSyncConfig(ctx context.Context, cfg *SyncConfig) (*SyncConfig, error) {
	if cfg.ProviderName != ProviderSimpleFIN {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.ProviderName)
	}
	if err := r.creds.Ensure(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RawResponse returns the captured response of a run once; later calls and
// expired entries return false.
func (r *Runtime) RawResponse(runID string) ([]byte, bool) {
	return r.raw.Pop(runID)
}

// ScheduleActive registers the recurring job of every active config. Configs
// that fail to register are logged and skipped.
func (r *Runtime) ScheduleActive(ctx context.Context) error {
	configs, err := r.configs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sync configs: %w", err)
	}
	log.Printf("Initializing sync scheduler with %d active config(s)", len(configs))

	var errs []error
	for _, cfg := range configs {
		if cfg.Schedule == "" {
			continue
		}
		if err := r.RunSync(ctx, cfg, RunSyncOptions{OnSchedule: true}); err != nil {
			log.Printf("Sync %d (%s): %v", cfg.ID, cfg.Name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
