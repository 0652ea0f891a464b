package staff

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lookup answers whether a user may drive status transitions for an order's
// restaurant. Pure predicate, no side effects.
type Lookup interface {
	IsStaffForOrder(ctx context.Context, userID string, orderID uuid.UUID) (bool, error)
}

type postgresLookup struct {
	db *pgxpool.Pool
}

func NewLookup(db *pgxpool.Pool) Lookup {
	return &postgresLookup{db: db}
}

func (l *postgresLookup) IsStaffForOrder(ctx context.Context, userID string, orderID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM restaurant_staff rs
			JOIN orders o ON o.restaurant_id = rs.restaurant_id
			WHERE rs.user_id = $1 AND o.id = $2
		)
	`

	var isStaff bool
	err := l.db.QueryRow(ctx, query, userID, orderID).Scan(&isStaff)
	if err != nil {
		return false, fmt.Errorf("staff: failed to check membership for user %s on order %s: %w", userID, orderID, err)
	}

	return isStaff, nil
}
