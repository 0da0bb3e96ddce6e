package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskfabric/taskfabric/internal/ledger"
)

// Claim atomically claims (event_id, consumer) via conditional insert on the
// composite primary key. A failed entry is re-claimable so a redelivery can
// retry; a processed entry stays a duplicate. Postgres decides, not the
// caller: two concurrent claims race on the PK and exactly one wins.
func (s *Store) Claim(ctx context.Context, eventID, consumer, eventType string, ttl time.Duration) (bool, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO event_log (event_id, event_type, consumer_service, processed_at, status, expires_at)
		VALUES ($1, $2, $3, now(), $4, now() + $5)
		ON CONFLICT (event_id, consumer_service) DO UPDATE
		SET status = $4, processed_at = now(), error = NULL, expires_at = now() + $5
		WHERE event_log.status = $6
		RETURNING event_id`,
		eventID, eventType, consumer, ledger.StatusProcessed, ttl, ledger.StatusFailed,
	)

	var claimed string
	if err := row.Scan(&claimed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict on a non-failed entry: duplicate.
			return false, nil
		}
		return false, fmt.Errorf("claim event %s for %s: %w", eventID, consumer, err)
	}
	return true, nil
}

// RecordFailure marks the consumer's entry as failed so redelivery can
// re-claim it.
func (s *Store) RecordFailure(ctx context.Context, eventID, consumer string, procErr error) error {
	_, err := s.db.Exec(ctx, `
		UPDATE event_log
		SET status = $3, error = $4
		WHERE event_id = $1 AND consumer_service = $2`,
		eventID, consumer, ledger.StatusFailed, procErr.Error(),
	)
	if err != nil {
		return fmt.Errorf("record failure for event %s: %w", eventID, err)
	}
	return nil
}

// PurgeExpired deletes ledger entries whose TTL has passed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM event_log
		WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired ledger entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
