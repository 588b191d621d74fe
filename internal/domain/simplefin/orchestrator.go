package simplefin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	syncMeter           = otel.Meter("finsync/simplefin")
	syncRunTotal, _     = syncMeter.Int64Counter("sync.run.total", metric.WithDescription("Sync runs by terminal status"))
	syncRunDuration, _  = syncMeter.Float64Histogram("sync.run.duration", metric.WithDescription("Sync run duration in seconds"), metric.WithUnit("s"))
	syncTxnsCreated, _  = syncMeter.Int64Counter("sync.transactions.created", metric.WithDescription("Transactions created by sync"))
	syncRemoteErrors, _ = syncMeter.Int64Counter("sync.remote.errors", metric.WithDescription("Row-level errors reported by the aggregator"))
)

// incrementalOverlap is subtracted from the last sync time to absorb provider skew.
const incrementalOverlap = 24 * time.Hour

// emptyMonthsToStop ends a walk-back once this many consecutive months had no transactions.
const emptyMonthsToStop = 2

// DuplicateChecker decides whether a newly seen account duplicates an existing one.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, accountID string) (bool, error)
}

// Notifier receives operator alerts. Implementations must not block for long.
type Notifier interface {
	SyncFailed(ctx context.Context, configID int64, configName, runID, errMsg string)
	DuplicateAccount(ctx context.Context, accountID, accountName string)
}

// RunOptions selects how a run fetches.
type RunOptions struct {
	// FromDate forces a single non-incremental fetch from this time to now.
	FromDate *time.Time
	// CaptureRaw keeps the last raw response of the run for download.
	CaptureRaw bool
}

// Orchestrator drives one sync run from credentials to finalized run record.
type Orchestrator struct {
	configs    ConfigRepository
	runs       RunRepository
	creds      *CredentialService
	client     RemoteClient
	ingestor   *Ingestor
	accounts   AccountStore
	duplicates DuplicateChecker
	notifier   Notifier
	raw        *RawResponseCache
	maxMonths  int
	now        func() time.Time
}

// OrchestratorDeps groups the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Configs    ConfigRepository
	Runs       RunRepository
	Creds      *CredentialService
	Client     RemoteClient
	Ingestor   *Ingestor
	Accounts   AccountStore
	Duplicates DuplicateChecker
	Notifier   Notifier
	Raw        *RawResponseCache
	// MaxMonths caps every walk-back; zero means no cap.
	MaxMonths int
}

// NewOrchestrator creates a new sync orchestrator
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		configs:    deps.Configs,
		runs:       deps.Runs,
		creds:      deps.Creds,
		client:     deps.Client,
		ingestor:   deps.Ingestor,
		accounts:   deps.Accounts,
		duplicates: deps.Duplicates,
		notifier:   deps.Notifier,
		raw:        deps.Raw,
		maxMonths:  deps.MaxMonths,
		now:        time.Now,
	}
}

// runState is what one run carries between ranges.
type runState struct {
	cfg   *SyncConfig
	run   *SyncRun
	stats *Stats
	opts  RunOptions
}

// Run executes one sync of cfg. The run record is created before any remote
// call and always finalized. Ranges already ingested stay committed when a
// later range fails.
func (o *Orchestrator) Run(ctx context.Context, cfg *SyncConfig, opts RunOptions) (run *SyncRun, err error) {
	if cfg.ProviderName != ProviderSimpleFIN {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.ProviderName)
	}

	run = &SyncRun{
		ID:           uuid.NewString(),
		SyncConfigID: cfg.ID,
		Status:       RunStatusRunning,
		StartedAt:    o.now().UTC(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	state := &runState{cfg: cfg, run: run, stats: newStats(), opts: opts}
	defer func() {
		o.finish(ctx, state, err)
	}()

	if err := o.configs.SetErrors(ctx, cfg.ID, nil); err != nil {
		return run, fmt.Errorf("failed to clear config errors: %w", err)
	}
	cfg.Errors = nil

	if err := o.creds.Ensure(ctx, cfg); err != nil {
		log.Printf("Sync %d (%s): could not fetch credentials, skipping sync", cfg.ID, cfg.Name)
		return run, err
	}

	now := o.now().UTC()
	switch {
	case opts.FromDate != nil:
		if _, err := o.syncRange(ctx, state, opts.FromDate.UTC(), now, false); err != nil {
			return run, err
		}
		log.Printf("Sync %d (%s): manual sync from %s processed %d transactions",
			cfg.ID, cfg.Name, opts.FromDate.Format(time.DateOnly), state.stats.TotalTransactions)

	case cfg.LastSync != nil:
		start := cfg.LastSync.UTC().Add(-incrementalOverlap)
		if _, err := o.syncRange(ctx, state, start, now, true); err != nil {
			return run, err
		}
		log.Printf("Sync %d (%s): incremental sync created %d transactions",
			cfg.ID, cfg.Name, state.stats.TotalTransactions)

	default:
		log.Printf("Sync %d (%s): no previous sync, performing initial sync", cfg.ID, cfg.Name)
		months, capped, err := o.walkBack(ctx, now, func(start, end time.Time) (int, error) {
			return o.syncRange(ctx, state, start, end, false)
		})
		if err != nil {
			return run, err
		}
		if capped {
			log.Printf("Sync %d (%s): initial sync reached the limit of %d months, older history not fetched", cfg.ID, cfg.Name, o.maxMonths)
		} else {
			log.Printf("Sync %d (%s): initial sync completed after %d months", cfg.ID, cfg.Name, months)
		}
	}

	if err := o.configs.SetLastSync(ctx, cfg.ID, now); err != nil {
		return run, fmt.Errorf("failed to record last sync: %w", err)
	}
	cfg.LastSync = &now
	return run, nil
}

// finish writes the terminal state of the run. It uses a context detached from
// cancellation so a timed out run is still recorded.
func (o *Orchestrator) finish(ctx context.Context, state *runState, runErr error) {
	ctx = context.WithoutCancel(ctx)
	run := state.run

	completed := o.now().UTC()
	run.CompletedAt = &completed
	if runErr != nil {
		run.Status = RunStatusFailed
		run.ErrorMessage = runErr.Error()
		if errors.Is(runErr, ErrCredentials) {
			run.ErrorMessage = "Could not fetch credentials"
		}
		log.Printf("Sync %d (%s): failed: %v", state.cfg.ID, state.cfg.Name, runErr)
	} else {
		run.Status = RunStatusCompleted
		run.AccountsProcessed = len(state.stats.Accounts)
		run.TransactionsFound = state.stats.TotalTransactions
		run.HoldingsFound = state.stats.TotalHoldings
		run.Details = state.stats.Accounts
	}

	if err := o.runs.Finish(ctx, run); err != nil {
		log.Printf("Sync %d (%s): failed to finalize run %s: %v", state.cfg.ID, state.cfg.Name, run.ID, err)
	}

	attrs := metric.WithAttributes(attribute.String("status", string(run.Status)))
	syncRunTotal.Add(ctx, 1, attrs)
	syncRunDuration.Record(ctx, completed.Sub(run.StartedAt).Seconds(), attrs)
	syncTxnsCreated.Add(ctx, int64(state.stats.TotalTransactions))

	if runErr != nil && o.notifier != nil {
		o.notifier.SyncFailed(ctx, state.cfg.ID, state.cfg.Name, run.ID, run.ErrorMessage)
	}
}

// syncRange fetches one window and ingests every account in it. It returns
// the number of transactions present in the payload, which drives the
// walk-back stopping rule.
func (o *Orchestrator) syncRange(ctx context.Context, state *runState, start, end time.Time, incremental bool) (int, error) {
	cfg := state.cfg
	log.Printf("Sync %d (%s): syncing %s to %s", cfg.ID, cfg.Name, start.Format(time.DateOnly), end.Format(time.DateOnly))

	res, err := o.client.Fetch(ctx, cfg.Credentials, start, end)
	if err != nil {
		return 0, err
	}
	if state.opts.CaptureRaw && o.raw != nil {
		o.raw.Store(state.run.ID, res.Raw)
		log.Printf("Sync %d (%s): captured raw response for run %s (%d bytes)", cfg.ID, cfg.Name, state.run.ID, len(res.Raw))
	}

	resp := res.Response
	if len(resp.Errors) > 0 {
		log.Printf("Warning: sync %d (%s): aggregator returned %d error(s): %v", cfg.ID, cfg.Name, len(resp.Errors), resp.Errors)
		syncRemoteErrors.Add(ctx, int64(len(resp.Errors)))
		if err := o.configs.SetErrors(ctx, cfg.ID, resp.Errors); err != nil {
			return 0, fmt.Errorf("failed to record aggregator errors: %w", err)
		}
		cfg.Errors = resp.Errors
	}

	if len(resp.Accounts) == 0 {
		return 0, nil
	}

	newAccounts := make(map[string]bool)
	if incremental {
		for _, rec := range resp.Accounts {
			if rec.Invalid != "" {
				continue
			}
			exists, err := o.accounts.Exists(ctx, rec.ID)
			if err != nil {
				return 0, fmt.Errorf("failed to check account %s: %w", rec.ID, err)
			}
			if !exists {
				newAccounts[rec.ID] = true
			}
		}
		if len(newAccounts) > 0 {
			log.Printf("Sync %d (%s): detected %d new account(s)", cfg.ID, cfg.Name, len(newAccounts))
		}
	}

	seen := 0
	for _, rec := range resp.Accounts {
		if rec.Invalid != "" {
			log.Printf("Warning: sync %d (%s): account %q is malformed, skipping: %s", cfg.ID, cfg.Name, rec.ID, rec.Invalid)
			continue
		}
		if rec.Org == nil {
			log.Printf("Warning: sync %d (%s): account %s has no org, skipping", cfg.ID, cfg.Name, rec.ID)
			continue
		}

		result, err := o.ingestor.IngestAccount(ctx, rec)
		if err != nil {
			return seen, err
		}
		seen += result.Seen
		state.stats.add(result.AccountID, result.Name, result.Transactions, result.Holdings)

		if newAccounts[rec.ID] {
			backfilled, err := o.onboard(ctx, state, rec, start)
			if err != nil {
				return seen, err
			}
			state.stats.add(result.AccountID, result.Name, backfilled, 0)
		}
	}

	if created := state.stats.TotalTransactions; created > 0 {
		log.Printf("Sync %d (%s): %d transactions created so far", cfg.ID, cfg.Name, created)
	}
	return seen, nil
}

// onboard handles an account first seen during an incremental sync. A
// duplicate of an existing account is left for an operator merge; any other
// account gets its history backfilled month by month from syncedFrom.
// Returns how many transactions the backfill created.
func (o *Orchestrator) onboard(ctx context.Context, state *runState, rec RemoteAccount, syncedFrom time.Time) (int, error) {
	cfg := state.cfg
	log.Printf("Sync %d (%s): onboarding new account %s", cfg.ID, cfg.Name, rec.ID)

	dup, err := o.duplicates.IsDuplicate(ctx, rec.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to check account %s for duplicates: %w", rec.ID, err)
	}
	if dup {
		log.Printf("Sync %d (%s): account %s appears to be a duplicate, not backfilling; merge to keep its history", cfg.ID, cfg.Name, rec.ID)
		if o.notifier != nil {
			o.notifier.DuplicateAccount(ctx, rec.ID, rec.Name)
		}
		return 0, nil
	}

	log.Printf("Sync %d (%s): account %s is new, pulling full history", cfg.ID, cfg.Name, rec.ID)
	created := 0
	months, capped, err := o.walkBack(ctx, syncedFrom, func(start, end time.Time) (int, error) {
		res, err := o.client.Fetch(ctx, cfg.Credentials, start, end)
		if err != nil {
			return 0, err
		}
		for _, a := range res.Response.Accounts {
			if a.ID != rec.ID {
				continue
			}
			n, err := o.ingestor.IngestTransactions(ctx, rec.ID, a.Transactions)
			if err != nil {
				return 0, err
			}
			created += n
			return len(a.Transactions), nil
		}
		return 0, nil
	})
	if err != nil {
		return created, err
	}

	if capped {
		log.Printf("Sync %d (%s): reached walk-back limit of %d months for %s", cfg.ID, cfg.Name, o.maxMonths, rec.ID)
	}
	log.Printf("Sync %d (%s): completed walk-back for %s: %d months, %d transactions", cfg.ID, cfg.Name, rec.ID, months, created)
	return created, nil
}

// walkBack calls step for consecutive calendar-month windows going back from
// end: the first window runs from the start of end's month (or the previous
// month when end falls on the first day) to end. It stops after two
// consecutive windows with no transactions, or when the month cap is reached.
func (o *Orchestrator) walkBack(ctx context.Context, end time.Time, step func(start, end time.Time) (int, error)) (months int, capped bool, err error) {
	empty := 0
	for empty < emptyMonthsToStop {
		if o.maxMonths > 0 && months >= o.maxMonths {
			return months, true, nil
		}
		if err := ctx.Err(); err != nil {
			return months, false, err
		}

		start := monthStart(end.AddDate(0, 0, -1))
		n, err := step(start, end)
		if err != nil {
			return months, false, err
		}
		if n == 0 {
			empty++
		} else {
			empty = 0
		}
		end = start
		months++
	}
	return months, false, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
