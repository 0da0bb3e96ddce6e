// Package ledger provides the idempotency ledger consumers use to process
// at-least-once deliveries exactly once.
package ledger

import (
	"context"
	"time"
)

// Status of a ledger entry.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Entry is one idempotency record, keyed by (event id, consumer).
type Entry struct {
	EventID     string
	EventType   string
	Consumer    string
	ProcessedAt time.Time
	Status      string
	Error       *string
	ExpiresAt   time.Time
}

// Ledger records which events a consumer has handled. Different consumers
// claim the same event id independently; a single consumer can win a claim
// for a given event at most once.
type Ledger interface {
	// Claim atomically marks the event as being processed by the consumer.
	// It returns true when the claim is fresh: no prior entry, or a prior
	// entry whose processing failed (failed entries are re-claimable so a
	// redelivery can retry). It returns false for a duplicate.
	Claim(ctx context.Context, eventID, consumer, eventType string, ttl time.Duration) (bool, error)

	// RecordFailure marks the consumer's entry for the event as failed, so a
	// later redelivery can claim it again.
	RecordFailure(ctx context.Context, eventID, consumer string, procErr error) error

	// PurgeExpired deletes entries whose expiry has passed, returning how
	// many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
