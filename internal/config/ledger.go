package config

import "time"

// LedgerConfig holds the idempotency ledger settings.
type LedgerConfig struct {
	// TTLHours is how long processed entries are retained before purge.
	TTLHours int `env:"TASKFABRIC_LEDGER_TTL_HOURS" default:"168"`

	// PurgeInterval is how often the background purge loop runs.
	PurgeInterval time.Duration `env:"TASKFABRIC_LEDGER_PURGE_INTERVAL" default:"1h"`
}

// TTL returns the retention window as a duration.
func (c LedgerConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}
