package simplefin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ProviderSimpleFIN is the only provider a sync config may name.
const ProviderSimpleFIN = "simplefin"

// Domain errors
var (
	ErrConfigNotFound      = errors.New("sync config not found")
	ErrRunNotFound         = errors.New("sync run not found")
	ErrCredentials         = errors.New("could not fetch credentials")
	ErrSyncInProgress      = errors.New("sync already in progress for this config")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRawUnavailable      = errors.New("raw response not available (may have expired or already been downloaded)")
)

// Credentials are stored encrypted. Password is base64 encoded.
type Credentials struct {
	SetupToken string `json:"setup_token,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
}

// Complete reports whether the credentials can be used for a fetch.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != "" && c.Endpoint != ""
}

// PlainPassword decodes the stored password.
func (c Credentials) PlainPassword() (string, error) {
	b, err := base64.StdEncoding.DecodeString(c.Password)
	if err != nil {
		return "", fmt.Errorf("failed to decode stored password: %w", err)
	}
	return string(b), nil
}

// SyncConfig is one remote data source with its schedule
type SyncConfig struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	ProviderName string      `json:"providerName"`
	Credentials  Credentials `json:"-"`
	Active       bool        `json:"active"`
	Schedule     string      `json:"schedule,omitempty"` // standard 5-field cron
	LastSync     *time.Time  `json:"lastSync,omitempty"`
	Errors       []string    `json:"errors,omitempty"`
}

// HasCredentials is exposed instead of the credentials themselves.
func (c *SyncConfig) HasCredentials() bool {
	return c.Credentials.Complete()
}

// RunStatus is the state of a sync run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AccountStats is the per-account breakdown of a run
type AccountStats struct {
	Name         string `json:"name"`
	Transactions int    `json:"transactions"`
	Holdings     int    `json:"holdings"`
}

// SyncRun is one execution of a sync config
type SyncRun struct {
	ID                string                   `json:"id"`
	SyncConfigID      int64                    `json:"syncConfigId"`
	Status            RunStatus                `json:"status"`
	StartedAt         time.Time                `json:"startedAt"`
	CompletedAt       *time.Time               `json:"completedAt,omitempty"`
	AccountsProcessed int                      `json:"accountsProcessed"`
	TransactionsFound int                      `json:"transactionsFound"`
	HoldingsFound     int                      `json:"holdingsFound"`
	ErrorMessage      string                   `json:"errorMessage,omitempty"`
	Details           map[string]*AccountStats `json:"details,omitempty"`
}

// Stats accumulates counts over every range of one run.
type Stats struct {
	Accounts          map[string]*AccountStats
	TotalTransactions int
	TotalHoldings     int
}

func newStats() *Stats {
	return &Stats{Accounts: make(map[string]*AccountStats)}
}

func (s *Stats) add(accountID, name string, transactions, holdings int) {
	a, ok := s.Accounts[accountID]
	if !ok {
		a = &AccountStats{Name: name}
		s.Accounts[accountID] = a
	}
	a.Transactions += transactions
	a.Holdings += holdings
	s.TotalTransactions += transactions
	s.TotalHoldings += holdings
}

// CreateConfigParams contains parameters for creating a sync config
type CreateConfigParams struct {
	Name         string `json:"name"`
	ProviderName string `json:"providerName"`
	SetupToken   string `json:"setupToken"`
	Schedule     string `json:"schedule"`
	Active       *bool  `json:"active"`
}

// Validate validates the create parameters
func (p CreateConfigParams) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if p.ProviderName != ProviderSimpleFIN {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, p.ProviderName)
	}
	if p.SetupToken == "" {
		return fmt.Errorf("%w: setup token is required", ErrInvalidInput)
	}
	return validateSchedule(p.Schedule)
}

// UpdateConfigParams contains optional fields for updating a sync config
type UpdateConfigParams struct {
	Name       *string `json:"name"`
	SetupToken *string `json:"setupToken"`
	Schedule   *string `json:"schedule"`
	Active     *bool   `json:"active"`
}

// Validate validates the update parameters
func (p UpdateConfigParams) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if p.SetupToken != nil && *p.SetupToken == "" {
		return fmt.Errorf("%w: setup token cannot be empty", ErrInvalidInput)
	}
	if p.Schedule != nil {
		return validateSchedule(*p.Schedule)
	}
	return nil
}

func validateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("%w: schedule: %v", ErrInvalidInput, err)
	}
	return nil
}
