package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"finsync/internal/app"
	"finsync/internal/domain/reconcile"
	"finsync/internal/domain/simplefin"
	"finsync/internal/infrastructure/postgres"
	"finsync/internal/shared/auth"
	"finsync/internal/shared/config"
)

const usage = `finsync admin CLI - maintenance commands

Usage:
  admin <command> [options]

Commands:
  migrate      Apply (or roll back) database migrations
  sync         Run a sync for one or all active configs in the foreground
  runs         Show recent runs of a sync config
  duplicates   List groups of duplicate accounts
  merge        Merge a duplicate account into the original
  classify     Assign a type to every account that has none
  hash-token   Hash an API token for API_TOKEN_HASH (generates one if omitted)

Examples:
  admin migrate
  admin migrate --down=1
  admin sync --config-id=3
  admin sync --all --from=2024-01-01
  admin runs --config-id=3 --limit=5
  admin duplicates
  admin merge --source=ACT-new --target=ACT-old --preserve=false
  admin classify
  admin hash-token
  admin hash-token --token=my-existing-token
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "migrate":
		err = runMigrate(args)
	case "sync":
		err = runSync(args)
	case "runs":
		err = runRuns(args)
	case "duplicates":
		err = runDuplicates(args)
	case "merge":
		err = runMerge(args)
	case "classify":
		err = runClassify(args)
	case "hash-token":
		err = runHashToken(args)
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

// withServices loads config, builds the service graph and runs fn under timeout.
func withServices(timeout time.Duration, fn func(ctx context.Context, s *app.Services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	services, err := app.NewServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	return fn(ctx, services)
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	down := fs.Int("down", 0, "Roll back this many migrations instead of applying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *down > 0 {
		return postgres.MigrateDown(cfg.Database.ConnectionString(), *down)
	}
	return postgres.Migrate(cfg.Database.ConnectionString())
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configID := fs.Int64("config-id", 0, "Sync config to run")
	all := fs.Bool("all", false, "Run every active sync config")
	from := fs.String("from", "", "Sync from this date (YYYY-MM-DD) instead of the incremental window")
	timeout := fs.Duration("timeout", time.Hour, "Timeout for the whole command")
	fs.Usage = func() {
		fmt.Println("Usage: admin sync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configID == 0 && !*all {
		fs.Usage()
		return fmt.Errorf("must specify --config-id or --all")
	}

	var opts simplefin.RunOptions
	if *from != "" {
		fromDate, err := time.Parse(time.DateOnly, *from)
		if err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
		opts.FromDate = &fromDate
	}

	return withServices(*timeout, func(ctx context.Context, s *app.Services) error {
		var configs []*simplefin.SyncConfig
		if *all {
			list, err := s.Configs.List(ctx)
			if err != nil {
				return err
			}
			for _, cfg := range list {
				if cfg.Active {
					configs = append(configs, cfg)
				}
			}
		} else {
			cfg, err := s.Configs.Get(ctx, *configID)
			if err != nil {
				return err
			}
			configs = append(configs, cfg)
		}

		if len(configs) == 0 {
			log.Println("No sync configs to run")
			return nil
		}

		failed := 0
		for _, cfg := range configs {
			start := time.Now()
			run, err := s.Runtime.Execute(ctx, cfg, opts)
			printRun(cfg, run, time.Since(start))
			if err != nil {
				log.Printf("Sync %d (%s) failed: %v", cfg.ID, cfg.Name, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d syncs failed", failed, len(configs))
		}
		return nil
	})
}

func printRun(cfg *simplefin.SyncConfig, run *simplefin.SyncRun, elapsed time.Duration) {
	fmt.Printf("\n=== Sync %d (%s) ===\n", cfg.ID, cfg.Name)
	if run == nil {
		fmt.Println("  No run recorded")
		return
	}
	fmt.Printf("  Run:                %s\n", run.ID)
	fmt.Printf("  Status:             %s\n", run.Status)
	fmt.Printf("  Accounts processed: %d\n", run.AccountsProcessed)
	fmt.Printf("  Transactions new:   %d\n", run.TransactionsFound)
	fmt.Printf("  Holdings new:       %d\n", run.HoldingsFound)
	fmt.Printf("  Elapsed:            %s\n", elapsed.Round(time.Millisecond))
	if run.ErrorMessage != "" {
		fmt.Printf("  Error:              %s\n", run.ErrorMessage)
	}
}

func runRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configID := fs.Int64("config-id", 0, "Sync config to inspect")
	limit := fs.Int("limit", simplefin.DefaultRunHistoryLimit, "Number of runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configID == 0 {
		return fmt.Errorf("must specify --config-id")
	}

	return withServices(time.Minute, func(ctx context.Context, s *app.Services) error {
		runs, err := s.Configs.ListRuns(ctx, *configID, *limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs yet")
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%s  %-9s  started %s  accounts=%d txns=%d holdings=%d",
				run.ID, run.Status, run.StartedAt.Format(time.RFC3339),
				run.AccountsProcessed, run.TransactionsFound, run.HoldingsFound)
			if run.ErrorMessage != "" {
				fmt.Printf("  error=%q", run.ErrorMessage)
			}
			fmt.Println()
		}
		return nil
	})
}

func runDuplicates(args []string) error {
	fs := flag.NewFlagSet("duplicates", flag.ExitOnError)
	timeout := fs.Duration("timeout", 10*time.Minute, "Timeout for the operation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withServices(*timeout, func(ctx context.Context, s *app.Services) error {
		groups, err := s.Detector.FindDuplicates(ctx)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicate accounts found")
			return nil
		}
		for _, g := range groups {
			fmt.Printf("\n=== %s (org %s) ===\n", g.Name, g.OrgID)
			for i, acct := range g.Accounts {
				role := "duplicate"
				if i == 0 {
					role = "original "
				}
				created := "unknown"
				if acct.CreatedAt != nil {
					created = acct.CreatedAt.Format(time.DateOnly)
				}
				fmt.Printf("  %s  %s  created %s\n", role, acct.ID, created)
			}
		}
		return nil
	})
}

func runMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	source := fs.String("source", "", "Account to merge away (the newer duplicate)")
	target := fs.String("target", "", "Account to keep")
	preserve := fs.Bool("preserve", true, "Copy categorization from deleted duplicate transactions (--preserve=false to drop it)")
	lookback := fs.Int("lookback-months", 0, "Override the recent window in months")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" || *target == "" {
		return fmt.Errorf("must specify --source and --target")
	}

	return withServices(10*time.Minute, func(ctx context.Context, s *app.Services) error {
		stats, err := s.Merger.Merge(ctx, reconcile.MergeRequest{
			SourceID:               *source,
			TargetID:               *target,
			PreserveCategorization: *preserve,
			LookbackMonths:         *lookback,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Transactions reassigned: %d\n", stats.TransactionsReassigned)
		fmt.Printf("  Transactions removed:    %d\n", stats.TransactionsRemoved)
		fmt.Printf("  Transactions matched:    %d\n", stats.TransactionsMatched)
		fmt.Printf("  Holdings reassigned:     %d\n", stats.HoldingsReassigned)
		fmt.Printf("  Source deleted:          %t\n", stats.SourceAccountDeleted)
		return nil
	})
}

func runClassify(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withServices(10*time.Minute, func(ctx context.Context, s *app.Services) error {
		n, err := s.Accounts.ClassifyUnset(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Classified %d account(s)\n", n)
		return nil
	})
}

// runHashToken needs no database.
func runHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ExitOnError)
	token := fs.String("token", "", "Token to hash (a random one is generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	generated := *token == ""
	if generated {
		t, err := auth.GenerateToken()
		if err != nil {
			return err
		}
		*token = t
	}

	hash, err := auth.HashToken(*token)
	if err != nil {
		return err
	}
	if generated {
		fmt.Printf("Token:          %s\n", *token)
	}
	fmt.Printf("API_TOKEN_HASH=%s\n", hash)
	return nil
}
