package catalog

import (
	"time"

	"github.com/gofrs/uuid"
)

type Restaurant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

// MenuItem is a dish offered by a restaurant. Quantity is the authoritative
// available count for surplus offers; it is only decremented inside an order
// transaction holding the row lock.
type MenuItem struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	BasePrice    float64   `json:"base_price"`
	Quantity     int       `json:"quantity"`
	SurplusPrice *float64  `json:"surplus_price,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Pricing is the explicit case split between a discounted, quantity-limited
// surplus offer and a regular menu item. Callers type-switch on it instead of
// null-checking SurplusPrice.
type Pricing interface {
	UnitPrice() float64
}

// SurplusPricing prices a near-expiry offer. Quantity is the remaining stock
// at read time.
type SurplusPricing struct {
	Price    float64
	Quantity int
}

func (p SurplusPricing) UnitPrice() float64 { return p.Price }

// RegularPricing prices an unlimited menu item at its base price.
type RegularPricing struct {
	Price float64
}

func (p RegularPricing) UnitPrice() float64 { return p.Price }

// Pricing returns the tagged pricing variant for the item.
func (m MenuItem) Pricing() Pricing {
	if m.SurplusPrice != nil {
		return SurplusPricing{Price: *m.SurplusPrice, Quantity: m.Quantity}
	}
	return RegularPricing{Price: m.BasePrice}
}
