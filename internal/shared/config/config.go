package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Scheduler  SchedulerConfig
	SimpleFIN  SimpleFINConfig
	Reconcile  ReconcileConfig
	Encryption EncryptionConfig
	Auth       AuthConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
	Cache      CacheConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

type SchedulerConfig struct {
	Enabled     bool
	WorkerCount int
	JobDelay    time.Duration
	JobTimeout  time.Duration
	QueueSize   int
}

type SimpleFINConfig struct {
	HTTPTimeout time.Duration
	// InitialSyncMaxMonths caps historical walk-back; 0 means walk until two empty months.
	InitialSyncMaxMonths int
	RawResponseTTL       time.Duration
}

type ReconcileConfig struct {
	DuplicateSampleSize    int
	DuplicateMinMatchRatio float64
	MergeLookbackMonths    int
}

type EncryptionConfig struct {
	Key string
}

// AuthConfig holds the bcrypt hash of the API bearer token. Empty disables auth.
type AuthConfig struct {
	APITokenHash string
}

type FirebaseConfig struct {
	CredentialsFile string
	AlertTopic      string
	// MessagesFile optionally overrides the built-in alert texts.
	MessagesFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type CacheConfig struct {
	CategoryTTL time.Duration
}

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	schedulerWorkers, err := getIntEnv("SCHEDULER_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := getIntEnv("SCHEDULER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := getDurationEnv("SCHEDULER_JOB_DELAY", 0)
	if err != nil {
		return nil, err
	}
	schedulerJobTimeout, err := getDurationEnv("SCHEDULER_JOB_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	httpTimeout, err := getDurationEnv("SIMPLEFIN_HTTP_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	initialMonths, err := getIntEnv("SIMPLEFIN_INITIAL_SYNC_MONTHS", 0)
	if err != nil {
		return nil, err
	}
	rawTTL, err := getDurationEnv("SIMPLEFIN_RAW_RESPONSE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	sampleSize, err := getIntEnv("DUPLICATE_DETECTION_SAMPLE_SIZE", 5)
	if err != nil {
		return nil, err
	}
	minRatio, err := getFloatEnv("DUPLICATE_DETECTION_MIN_MATCH_RATIO", 0.8)
	if err != nil {
		return nil, err
	}
	lookbackMonths, err := getIntEnv("MERGE_LOOKBACK_MONTHS", 12)
	if err != nil {
		return nil, err
	}

	categoryTTL, err := getDurationEnv("CATEGORY_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "finsync"),
			Password:    getEnv("DB_PASSWORD", ""),
			DBName:      getEnv("DB_NAME", "finsync"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getBoolEnv("SCHEDULER_ENABLED", true),
			WorkerCount: schedulerWorkers,
			JobDelay:    schedulerJobDelay,
			JobTimeout:  schedulerJobTimeout,
			QueueSize:   schedulerQueueSize,
		},
		SimpleFIN: SimpleFINConfig{
			HTTPTimeout:          httpTimeout,
			InitialSyncMaxMonths: initialMonths,
			RawResponseTTL:       rawTTL,
		},
		Reconcile: ReconcileConfig{
			DuplicateSampleSize:    sampleSize,
			DuplicateMinMatchRatio: minRatio,
			MergeLookbackMonths:    lookbackMonths,
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Auth: AuthConfig{
			APITokenHash: getEnv("API_TOKEN_HASH", ""),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			AlertTopic:      getEnv("FIREBASE_ALERT_TOPIC", "sync-alerts"),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "finsync-api"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Cache: CacheConfig{
			CategoryTTL: categoryTTL,
		},
	}

	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Scheduler.WorkerCount < 1 {
		return nil, fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}
	if cfg.Reconcile.DuplicateSampleSize < 1 {
		return nil, fmt.Errorf("DUPLICATE_DETECTION_SAMPLE_SIZE must be at least 1")
	}
	if cfg.Reconcile.DuplicateMinMatchRatio <= 0 || cfg.Reconcile.DuplicateMinMatchRatio > 1 {
		return nil, fmt.Errorf("DUPLICATE_DETECTION_MIN_MATCH_RATIO must be in (0, 1]")
	}
	if cfg.SimpleFIN.InitialSyncMaxMonths < 0 {
		return nil, fmt.Errorf("SIMPLEFIN_INITIAL_SYNC_MONTHS cannot be negative")
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
