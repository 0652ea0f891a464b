package notify

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
)

// StatusNotification describes one committed order status change.
type StatusNotification struct {
	OrderID      uuid.UUID `json:"order_id"`
	UserID       string    `json:"user_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Notifier publishes order status changes to interested consumers
// (notification fan-out, analytics). Publication is best effort and happens
// after the owning transaction commits.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, n StatusNotification) error
}

// NopNotifier is used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) OrderStatusChanged(context.Context, StatusNotification) error { return nil }
