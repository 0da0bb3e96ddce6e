package config

import (
	"errors"
	"time"
)

// ErrRedisAddrRequired is returned when the broker address is not configured.
var ErrRedisAddrRequired = errors.New("TASKFABRIC_REDIS_ADDR is required")

// RedisConfig holds the connection settings for the Redis Streams broker.
type RedisConfig struct {
	Addr     string `env:"TASKFABRIC_REDIS_ADDR"`
	Password string `env:"TASKFABRIC_REDIS_PASSWORD"`
	DB       int    `env:"TASKFABRIC_REDIS_DB"`

	// BlockTimeout caps how long a consumer read blocks waiting for entries.
	BlockTimeout time.Duration `env:"TASKFABRIC_REDIS_BLOCK_TIMEOUT" default:"5s"`

	// ClaimMinIdle is how long a pending entry must sit un-acked before
	// another consumer may claim and re-process it.
	ClaimMinIdle time.Duration `env:"TASKFABRIC_REDIS_CLAIM_MIN_IDLE" default:"1m"`
}

// Validate validates the Redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return ErrRedisAddrRequired
	}
	return nil
}
