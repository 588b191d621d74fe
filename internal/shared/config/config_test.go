package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901") // 32 bytes
}

func TestLoad_Success(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("Database.AutoMigrate should default to true")
	}
	if cfg.SimpleFIN.RawResponseTTL != 5*time.Minute {
		t.Errorf("SimpleFIN.RawResponseTTL = %v, want 5m", cfg.SimpleFIN.RawResponseTTL)
	}
	if cfg.SimpleFIN.InitialSyncMaxMonths != 0 {
		t.Errorf("SimpleFIN.InitialSyncMaxMonths = %d, want 0", cfg.SimpleFIN.InitialSyncMaxMonths)
	}
}

func TestLoad_ReconcileDefaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Reconcile.DuplicateSampleSize != 5 {
		t.Errorf("DuplicateSampleSize = %d, want 5", cfg.Reconcile.DuplicateSampleSize)
	}
	if cfg.Reconcile.DuplicateMinMatchRatio != 0.8 {
		t.Errorf("DuplicateMinMatchRatio = %v, want 0.8", cfg.Reconcile.DuplicateMinMatchRatio)
	}
	if cfg.Reconcile.MergeLookbackMonths != 12 {
		t.Errorf("MergeLookbackMonths = %d, want 12", cfg.Reconcile.MergeLookbackMonths)
	}
}

func TestLoad_InvalidEncryptionKeyLength(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "too-short")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid ENCRYPTION_KEY length, got nil")
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("ENCRYPTION_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing ENCRYPTION_KEY, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DB_PORT", "not-a-number"},
		{"SCHEDULER_WORKERS", "0"},
		{"SCHEDULER_JOB_TIMEOUT", "forever"},
		{"SIMPLEFIN_HTTP_TIMEOUT", "abc"},
		{"SIMPLEFIN_INITIAL_SYNC_MONTHS", "-1"},
		{"DUPLICATE_DETECTION_SAMPLE_SIZE", "0"},
		{"DUPLICATE_DETECTION_MIN_MATCH_RATIO", "1.5"},
		{"DUPLICATE_DETECTION_MIN_MATCH_RATIO", "high"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_SchedulerConfig(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_WORKERS", "10")
	t.Setenv("SCHEDULER_JOB_TIMEOUT", "45m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Scheduler.Enabled != false {
		t.Error("Scheduler.Enabled should be false")
	}
	if cfg.Scheduler.WorkerCount != 10 {
		t.Errorf("Scheduler.WorkerCount = %d, want 10", cfg.Scheduler.WorkerCount)
	}
	if cfg.Scheduler.JobTimeout != 45*time.Minute {
		t.Errorf("Scheduler.JobTimeout = %v, want 45m", cfg.Scheduler.JobTimeout)
	}
}

func TestLoad_SimpleFINOverrides(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SIMPLEFIN_INITIAL_SYNC_MONTHS", "12")
	t.Setenv("SIMPLEFIN_HTTP_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.SimpleFIN.InitialSyncMaxMonths != 12 {
		t.Errorf("InitialSyncMaxMonths = %d, want 12", cfg.SimpleFIN.InitialSyncMaxMonths)
	}
	if cfg.SimpleFIN.HTTPTimeout != 90*time.Second {
		t.Errorf("HTTPTimeout = %v, want 90s", cfg.SimpleFIN.HTTPTimeout)
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value    string
		defVal   bool
		expected bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"invalid", true, true},   // returns default
		{"invalid", false, false}, // returns default
		{"", true, true},          // empty returns default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			key := "TEST_BOOL_ENV"
			if tt.value == "" {
				os.Unsetenv(key)
			} else {
				t.Setenv(key, tt.value)
			}

			got := getBoolEnv(key, tt.defVal)
			if got != tt.expected {
				t.Errorf("getBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defVal, got, tt.expected)
			}
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	got := cfg.ConnectionString()
	if got != expected {
		t.Errorf("ConnectionString() = %q, want %q", got, expected)
	}
}
