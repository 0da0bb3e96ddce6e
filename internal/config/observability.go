package config

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled bool `env:"TASKFABRIC_OTEL_ENABLED" default:"true"`
}
