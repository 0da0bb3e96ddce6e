package config

import "time"

// PublisherConfig holds the event publisher settings.
type PublisherConfig struct {
	// MaxRetries is the number of re-attempts after the initial publish
	// (3 means up to 4 tries total).
	MaxRetries int `env:"TASKFABRIC_PUBLISHER_MAX_RETRIES" default:"3"`

	// EnableBuffer turns on local buffering of events whose publish attempts
	// were exhausted, for later replay via Flush.
	EnableBuffer bool `env:"TASKFABRIC_PUBLISHER_ENABLE_BUFFER" default:"false"`

	// MaxBufferSize caps the local buffer; beyond it events are dropped.
	MaxBufferSize int `env:"TASKFABRIC_PUBLISHER_MAX_BUFFER_SIZE" default:"1000"`

	// FlushInterval is how often the background flush loop replays the buffer.
	FlushInterval time.Duration `env:"TASKFABRIC_PUBLISHER_FLUSH_INTERVAL" default:"30s"`
}
