package config

import "time"

// NotifierConfig holds the notification dispatcher settings.
type NotifierConfig struct {
	// MaxRetryAttempts is the number of re-attempts per channel send after
	// the initial try.
	MaxRetryAttempts int `env:"TASKFABRIC_NOTIFIER_MAX_RETRY_ATTEMPTS" default:"3"`

	// RetryBackoffBase is the exponential backoff base in seconds
	// (delay = base^attempt seconds).
	RetryBackoffBase float64 `env:"TASKFABRIC_NOTIFIER_RETRY_BACKOFF_BASE" default:"2.0"`

	// RetryBackoffMax caps any single backoff delay.
	RetryBackoffMax time.Duration `env:"TASKFABRIC_NOTIFIER_RETRY_BACKOFF_MAX" default:"5m"`

	// Provider endpoints.
	EmailEndpoint     string `env:"TASKFABRIC_EMAIL_ENDPOINT"`
	EmailAPIKey       string `env:"TASKFABRIC_EMAIL_API_KEY"`
	PushEndpoint      string `env:"TASKFABRIC_PUSH_ENDPOINT"`
	PushAPIKey        string `env:"TASKFABRIC_PUSH_API_KEY"`
	DirectoryEndpoint string `env:"TASKFABRIC_DIRECTORY_ENDPOINT"`

	// HTTPPort serves the health endpoint.
	HTTPPort string `env:"TASKFABRIC_NOTIFIER_HTTP_PORT" default:"8083"`
}
