// Package app wires repositories, domain services and the sync runtime
// into one graph shared by the API server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log"

	"finsync/internal/domain/account"
	"finsync/internal/domain/category"
	"finsync/internal/domain/notification"
	"finsync/internal/domain/payee"
	"finsync/internal/domain/reconcile"
	"finsync/internal/domain/simplefin"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/firebase"
	"finsync/internal/infrastructure/postgres"
	sfclient "finsync/internal/infrastructure/simplefin"
	"finsync/internal/interfaces/scheduler"
	"finsync/internal/shared/config"
	"finsync/internal/shared/messages"
)

// Services holds every initialized domain component.
type Services struct {
	DB *postgres.DB

	Accounts     *account.Service
	Transactions *transaction.Service
	Detector     *reconcile.Detector
	Merger       *reconcile.Merger

	Configs      *simplefin.ConfigService
	Runtime      *simplefin.Runtime
	Orchestrator *simplefin.Orchestrator
	Scheduler    *scheduler.Scheduler
	Notifier     *notification.Service

	categories *category.Lookup
}

// NewServices connects to the database and builds the service graph.
// The scheduler is created but not started.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Repositories
	accountRepo := postgres.NewAccountRepository(db)
	orgRepo := postgres.NewOrgRepository(db)
	balanceRepo := postgres.NewBalanceRepository(db)
	holdingRepo := postgres.NewHoldingRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	payeeRepo := postgres.NewPayeeRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	syncConfigRepo := postgres.NewSyncConfigRepository(db, encryptor)
	syncRunRepo := postgres.NewSyncRunRepository(db)

	// Categories and payees
	categories, err := category.NewLookup(categoryRepo, cfg.Cache.CategoryTTL)
	if err != nil {
		db.Close()
		return nil, err
	}
	suggester := category.NewSuggester(categories)
	payeeService := payee.NewService(payeeRepo)

	// Accounts and transactions
	accountService := account.NewService(accountRepo, balanceRepo, holdingRepo, payeeRepo, suggester, db)
	transactionService := transaction.NewService(transactionRepo, payeeService, accountRepo, db)

	// Reconciliation
	detector := reconcile.NewDetector(accountRepo, transactionRepo, reconcile.Options{
		SampleSize:    cfg.Reconcile.DuplicateSampleSize,
		MinMatchRatio: cfg.Reconcile.DuplicateMinMatchRatio,
	})
	merger := reconcile.NewMerger(accountRepo, transactionRepo, holdingRepo, db, cfg.Reconcile.MergeLookbackMonths)

	texts, err := messages.Load(cfg.Firebase.MessagesFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	notifier := notification.NewService(newMessenger(ctx, cfg.Firebase), cfg.Firebase.AlertTopic, texts)

	// Sync
	client := sfclient.NewClient(cfg.SimpleFIN.HTTPTimeout)
	creds := simplefin.NewCredentialService(syncConfigRepo, client)
	raw := simplefin.NewRawResponseCache(cfg.SimpleFIN.RawResponseTTL)
	ingestor := simplefin.NewIngestor(accountRepo, orgRepo, balanceRepo, holdingRepo, transactionRepo, transactionService, suggester, db)
	orchestrator := simplefin.NewOrchestrator(simplefin.OrchestratorDeps{
		Configs:    syncConfigRepo,
		Runs:       syncRunRepo,
		Creds:      creds,
		Client:     client,
		Ingestor:   ingestor,
		Accounts:   accountRepo,
		Duplicates: detector,
		Notifier:   notifier,
		Raw:        raw,
		MaxMonths:  cfg.SimpleFIN.InitialSyncMaxMonths,
	})

	sched := scheduler.New(scheduler.Config{
		WorkerCount: cfg.Scheduler.WorkerCount,
		JobDelay:    cfg.Scheduler.JobDelay,
		JobTimeout:  cfg.Scheduler.JobTimeout,
		QueueSize:   cfg.Scheduler.QueueSize,
	})
	runtime := simplefin.NewRuntime(syncConfigRepo, orchestrator, creds, sched, raw)
	configService := simplefin.NewConfigService(syncConfigRepo, syncRunRepo, runtime)

	return &Services{
		DB:           db,
		Accounts:     accountService,
		Transactions: transactionService,
		Detector:     detector,
		Merger:       merger,
		Configs:      configService,
		Runtime:      runtime,
		Orchestrator: orchestrator,
		Scheduler:    sched,
		Notifier:     notifier,
		categories:   categories,
	}, nil
}

// newMessenger returns nil when push alerts are not configured or Firebase
// cannot be initialized; alerts are then only logged.
func newMessenger(ctx context.Context, cfg config.FirebaseConfig) notification.Messenger {
	if cfg.CredentialsFile == "" || cfg.AlertTopic == "" {
		log.Println("Firebase alerts disabled (FIREBASE_CREDENTIALS_FILE or FIREBASE_ALERT_TOPIC not set)")
		return nil
	}
	client, err := firebase.NewClient(ctx, cfg.CredentialsFile)
	if err != nil {
		log.Printf("Warning: Failed to initialize Firebase, alerts will only be logged: %v", err)
		return nil
	}
	log.Printf("Firebase alerts enabled on topic %q", cfg.AlertTopic)
	return client
}

// Close releases the category cache and the database pool.
func (s *Services) Close() error {
	if s.categories != nil {
		s.categories.Close()
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
