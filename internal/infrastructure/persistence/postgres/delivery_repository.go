package postgres

import (
	"context"
	"fmt"

	"github.com/taskfabric/taskfabric/internal/domain"
)

// CreateDelivery records one channel delivery outcome.
func (s *Store) CreateDelivery(ctx context.Context, d *domain.Delivery) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, owner_id, task_id, channel, status, message, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.OwnerID, d.TaskID, d.Channel, d.Status, d.Message, d.Error, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}
