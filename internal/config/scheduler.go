package config

import "time"

// SchedulerConfig holds the reminder scheduler settings.
type SchedulerConfig struct {
	// Cadence is the interval between scheduler ticks.
	Cadence time.Duration `env:"TASKFABRIC_SCHEDULER_CADENCE" default:"5m"`

	// HTTPPort serves the cron trigger and health endpoints.
	HTTPPort string `env:"TASKFABRIC_SCHEDULER_HTTP_PORT" default:"8081"`

	// BatchLimit caps how many due reminders a single tick picks up.
	BatchLimit int `env:"TASKFABRIC_SCHEDULER_BATCH_LIMIT" default:"500"`

	// DirectoryEndpoint is the user-directory base URL. When empty, contact
	// lookups resolve nothing and the reminder payload carries no email.
	DirectoryEndpoint string `env:"TASKFABRIC_DIRECTORY_ENDPOINT"`
}
