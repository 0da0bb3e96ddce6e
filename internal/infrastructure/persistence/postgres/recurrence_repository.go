package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taskfabric/taskfabric/internal/domain"
)

// CreateRecurrence persists a new recurrence config.
func (s *Store) CreateRecurrence(ctx context.Context, r *domain.Recurrence) error {
	var days []byte
	if r.DaysOfWeek != nil {
		var err error
		days, err = json.Marshal(r.DaysOfWeek)
		if err != nil {
			return fmt.Errorf("encode days_of_week: %w", err)
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO task_recurrences (id, task_id, pattern, "interval", days_of_week, day_of_month, next_fire_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.TaskID, r.Pattern, r.Interval, days, r.DayOfMonth, r.NextFireAt, r.Active, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recurrence: %w", err)
	}
	return nil
}

// FindRecurrenceByTask retrieves the recurrence config owned by a task.
func (s *Store) FindRecurrenceByTask(ctx context.Context, taskID string) (*domain.Recurrence, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, task_id, pattern, "interval", days_of_week, day_of_month, next_fire_at, active, created_at
		FROM task_recurrences
		WHERE task_id = $1`,
		taskID,
	)

	var (
		r       domain.Recurrence
		daysRaw []byte
	)
	err := row.Scan(&r.ID, &r.TaskID, &r.Pattern, &r.Interval, &daysRaw, &r.DayOfMonth, &r.NextFireAt, &r.Active, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecurrenceNotFound
		}
		return nil, fmt.Errorf("select recurrence: %w", err)
	}

	if daysRaw != nil {
		if err := json.Unmarshal(daysRaw, &r.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("decode days_of_week: %w", err)
		}
	}
	return &r, nil
}

// DeactivateRecurrence permanently deactivates a recurrence config.
// Deactivation is terminal: nothing in the system ever flips active back.
func (s *Store) DeactivateRecurrence(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE task_recurrences
		SET active = FALSE
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deactivate recurrence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecurrenceNotFound
	}
	return nil
}
