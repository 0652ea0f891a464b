package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

func (os OrderStatus) String() string {
	return string(os)
}

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusAccepted:  true,
		StatusCancelled: true,
	},
	StatusAccepted: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusReady:     true,
		StatusCancelled: true,
	},
	StatusReady: {
		StatusCompleted: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether the status table permits moving from one
// status to another.
func CanTransition(from, to OrderStatus) bool {
	return allowedTransitions[from][to]
}

// ForwardStatuses are the staff-driven transitions; cancellation is the
// customer's and goes through Cancel instead.
var ForwardStatuses = map[OrderStatus]bool{
	StatusAccepted:  true,
	StatusPreparing: true,
	StatusReady:     true,
	StatusCompleted: true,
}

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrForbidden           = errors.New("not allowed to act on this order")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrMultiRestaurantCart = errors.New("cart contains items from multiple restaurants")
)

// InvalidTransitionError names the current and the attempted status.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

type Item struct {
	ID       uuid.UUID `json:"id"`
	OrderID  uuid.UUID `json:"order_id"`
	MealID   uuid.UUID `json:"meal_id"`
	MealName string    `json:"meal_name"`
	Qty      int       `json:"qty"`
	// Price is the line total (unit price at order time multiplied by qty),
	// frozen at creation.
	Price float64 `json:"price"`
}

type Order struct {
	ID           uuid.UUID   `json:"id"`
	UserID       string      `json:"user_id"`
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	Status       OrderStatus `json:"status"`
	Total        float64     `json:"total"`
	Items        []Item      `json:"items,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// StatusEvent is one entry of the append-only order timeline.
type StatusEvent struct {
	OrderID   uuid.UUID   `json:"order_id"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// LineInput is one requested line of a direct order.
type LineInput struct {
	MealID uuid.UUID
	Qty    int
}
