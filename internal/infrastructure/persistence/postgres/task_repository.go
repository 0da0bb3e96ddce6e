package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taskfabric/taskfabric/internal/domain"
)

const taskColumns = `id, owner_id, title, description, completed, priority, tags, due_at, recurrence_id, created_at, updated_at, completed_at`

// CreateTask persists a new task.
func (s *Store) CreateTask(ctx context.Context, t *domain.Task) error {
	tags, err := json.Marshal(tagsOrEmpty(t.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.OwnerID, t.Title, t.Description, t.Completed, t.Priority,
		tags, t.DueAt, t.RecurrenceID, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FindTask retrieves a task by id for the given owner.
func (s *Store) FindTask(ctx context.Context, id, ownerID string) (*domain.Task, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("select task: %w", err)
	}
	return t, nil
}

// ListTasks retrieves the owner's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTask persists the task's current field values.
func (s *Store) UpdateTask(ctx context.Context, t *domain.Task) error {
	tags, err := json.Marshal(tagsOrEmpty(t.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE tasks
		SET title = $3, description = $4, completed = $5, priority = $6,
		    tags = $7, due_at = $8, updated_at = $9, completed_at = $10
		WHERE id = $1 AND owner_id = $2`,
		t.ID, t.OwnerID, t.Title, t.Description, t.Completed, t.Priority,
		tags, t.DueAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task. Reminders cascade via FK; the recurrence
// config's task reference is set null by FK, leaving the config orphaned
// but inert.
func (s *Store) DeleteTask(ctx context.Context, id, ownerID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM tasks
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t       domain.Task
		tagsRaw []byte
	)
	if err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.Priority,
		&tagsRaw, &t.DueAt, &t.RecurrenceID, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tagsRaw, &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &t, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
