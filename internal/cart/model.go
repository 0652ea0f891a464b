package cart

import (
	"time"

	"github.com/gofrs/uuid"
)

type Cart struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Item struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"cart_id"`
	MealID    uuid.UUID `json:"meal_id"`
	Qty       int       `json:"qty"`
	CreatedAt time.Time `json:"created_at"`
}

// Line is one cart item joined with the current meal state. Prices reflect
// the instant of the read, not the instant of a later checkout.
type Line struct {
	ItemID       uuid.UUID `json:"item_id"`
	MealID       uuid.UUID `json:"meal_id"`
	MealName     string    `json:"meal_name"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Qty          int       `json:"qty"`
	UnitPrice    float64   `json:"unit_price"`
	LineTotal    float64   `json:"line_total"`
	SurplusLeft  int       `json:"surplus_left"`
}

// View is the volatile read model of a cart with live pricing.
type View struct {
	CartID    uuid.UUID `json:"cart_id"`
	Items     []Line    `json:"items"`
	CartTotal float64   `json:"cart_total"`
}
