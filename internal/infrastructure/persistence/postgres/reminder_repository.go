package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskfabric/taskfabric/internal/application/scheduler"
	"github.com/taskfabric/taskfabric/internal/domain"
)

// CreateReminder persists a new reminder.
func (s *Store) CreateReminder(ctx context.Context, r *domain.Reminder) error {
	channels, err := json.Marshal(r.Channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO task_reminders (id, task_id, owner_id, remind_before, channels, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.TaskID, r.OwnerID, r.RemindBefore.String(), channels, r.SentAt, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// DueReminders selects up to limit unsent reminders of non-completed,
// due-dated tasks whose remind window has opened at now. The remind_before
// column holds the canonical ISO 8601 offset text, which Postgres casts to
// an interval directly.
func (s *Store) DueReminders(ctx context.Context, now time.Time, limit int) ([]scheduler.DueReminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.task_id, r.owner_id, t.title, t.description, t.due_at, r.remind_before, r.channels
		FROM task_reminders r
		JOIN tasks t ON t.id = r.task_id
		WHERE r.sent_at IS NULL
		  AND t.completed = FALSE
		  AND t.due_at IS NOT NULL
		  AND t.due_at - r.remind_before::interval <= $1
		ORDER BY t.due_at
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due reminders: %w", err)
	}
	defer rows.Close()

	var out []scheduler.DueReminder
	for rows.Next() {
		var (
			rem         scheduler.DueReminder
			channelsRaw []byte
		)
		if err := rows.Scan(
			&rem.ReminderID, &rem.TaskID, &rem.OwnerID, &rem.TaskTitle,
			&rem.TaskDescription, &rem.DueAt, &rem.RemindBefore, &channelsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		if err := json.Unmarshal(channelsRaw, &rem.Channels); err != nil {
			return nil, fmt.Errorf("decode channels: %w", err)
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

// MarkSent stamps the reminder's sent_at. The write autocommits so a crash
// later in the same tick cannot resurrect an already-sent reminder. Already
// stamped rows are left alone.
func (s *Store) MarkSent(ctx context.Context, reminderID string, sentAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE task_reminders
		SET sent_at = $2
		WHERE id = $1 AND sent_at IS NULL`,
		reminderID, sentAt,
	)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
