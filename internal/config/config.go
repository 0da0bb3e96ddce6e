package config

import (
	"fmt"

	"github.com/taskfabric/taskfabric/internal/env"
)

// SchedulerAppConfig is the full configuration of the scheduler binary.
type SchedulerAppConfig struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Publisher     PublisherConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
}

// LoadSchedulerConfig loads and validates scheduler configuration from environment.
func LoadSchedulerConfig() (*SchedulerAppConfig, error) {
	cfg := &SchedulerAppConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load scheduler config: %w", err)
	}

	return cfg, nil
}

// RecurrenceAppConfig is the full configuration of the recurrence engine binary.
type RecurrenceAppConfig struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Publisher     PublisherConfig
	Ledger        LedgerConfig
	Observability ObservabilityConfig

	HTTPPort string `env:"TASKFABRIC_RECURRENCE_HTTP_PORT" default:"8082"`
}

// LoadRecurrenceConfig loads and validates recurrence engine configuration from environment.
func LoadRecurrenceConfig() (*RecurrenceAppConfig, error) {
	cfg := &RecurrenceAppConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load recurrence config: %w", err)
	}

	return cfg, nil
}

// NotifierAppConfig is the full configuration of the notification dispatcher binary.
type NotifierAppConfig struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Publisher     PublisherConfig
	Ledger        LedgerConfig
	Notifier      NotifierConfig
	Observability ObservabilityConfig
}

// LoadNotifierConfig loads and validates notifier configuration from environment.
func LoadNotifierConfig() (*NotifierAppConfig, error) {
	cfg := &NotifierAppConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load notifier config: %w", err)
	}

	return cfg, nil
}
