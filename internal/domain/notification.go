package domain

import "time"

// DeliveryStatus is the terminal outcome of a single channel delivery.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Delivery is the per-channel audit record written by the notification
// dispatcher. One reminder with N channels yields N delivery rows.
type Delivery struct {
	ID      string
	OwnerID string
	TaskID  *string // Nullable: the task may be deleted by delivery time

	Channel Channel
	Status  DeliveryStatus
	Message string
	Error   *string // Set only when Status is failed

	CreatedAt time.Time
}
