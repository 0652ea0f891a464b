package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mealrescue/marketplace/internal/catalog"
)

var ErrItemNotFound = errors.New("cart item not found")

type Repository interface {
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	View(ctx context.Context, cartID uuid.UUID) (*View, error)
	ItemQuantity(ctx context.Context, cartID, mealID uuid.UUID) (int, error)
	UpsertItem(ctx context.Context, cartID, mealID uuid.UUID, qty int) error
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*Item, error)
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// GetOrCreate inserts a cart for the user and falls back to selecting the
// existing one when the unique constraint on user_id fires. The constraint,
// not a check-then-insert, is what keeps concurrent first accesses from
// creating duplicates.
func (r *postgresRepository) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	insertQuery := `
		INSERT INTO carts (user_id)
		VALUES ($1)
		RETURNING id, user_id, created_at
	`

	var c Cart
	err := r.db.QueryRow(ctx, insertQuery, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil, fmt.Errorf("repository: failed to insert cart for user %s: %w", userID, err)
	}

	selectQuery := `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`
	err = r.db.QueryRow(ctx, selectQuery, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}

	return &c, nil
}

func (r *postgresRepository) View(ctx context.Context, cartID uuid.UUID) (*View, error) {
	query := `
		SELECT ci.id, ci.meal_id, ci.qty,
		       m.name, m.restaurant_id, m.base_price, m.quantity, m.surplus_price
		FROM cart_items ci
		JOIN meals m ON m.id = ci.meal_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`

	rows, err := r.db.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items for cart %s: %w", cartID, err)
	}
	defer rows.Close()

	view := &View{CartID: cartID, Items: make([]Line, 0)}
	for rows.Next() {
		var (
			line         Line
			basePrice    float64
			quantity     int
			surplusPrice *float64
		)
		err := rows.Scan(
			&line.ItemID, &line.MealID, &line.Qty,
			&line.MealName, &line.RestaurantID, &basePrice, &quantity, &surplusPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart line for cart %s: %w", cartID, err)
		}

		meal := catalog.MenuItem{BasePrice: basePrice, Quantity: quantity, SurplusPrice: surplusPrice}
		switch pricing := meal.Pricing().(type) {
		case catalog.SurplusPricing:
			line.UnitPrice = pricing.Price
			line.SurplusLeft = pricing.Quantity
		case catalog.RegularPricing:
			line.UnitPrice = pricing.Price
		}

		line.LineTotal = line.UnitPrice * float64(line.Qty)
		view.CartTotal += line.LineTotal
		view.Items = append(view.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart lines for cart %s: %w", cartID, err)
	}

	return view, nil
}

func (r *postgresRepository) ItemQuantity(ctx context.Context, cartID, mealID uuid.UUID) (int, error) {
	query := `SELECT qty FROM cart_items WHERE cart_id = $1 AND meal_id = $2`

	var qty int
	err := r.db.QueryRow(ctx, query, cartID, mealID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("repository: failed to select cart item quantity: %w", err)
	}

	return qty, nil
}

func (r *postgresRepository) UpsertItem(ctx context.Context, cartID, mealID uuid.UUID, qty int) error {
	query := `
		INSERT INTO cart_items (cart_id, meal_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, meal_id) DO UPDATE SET qty = EXCLUDED.qty
	`

	_, err := r.db.Exec(ctx, query, cartID, mealID, qty)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert cart item: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*Item, error) {
	query := `
		SELECT id, cart_id, meal_id, qty, created_at
		FROM cart_items
		WHERE id = $1 AND cart_id = $2
	`

	var item Item
	err := r.db.QueryRow(ctx, query, itemID, cartID).Scan(
		&item.ID, &item.CartID, &item.MealID, &item.Qty, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %s: %w", itemID, err)
	}

	return &item, nil
}

func (r *postgresRepository) SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error {
	query := `UPDATE cart_items SET qty = $1 WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, query, qty, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *postgresRepository) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`

	cmdTag, err := r.db.Exec(ctx, query, itemID, cartID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, cartID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1`

	if _, err := r.db.Exec(ctx, query, cartID); err != nil {
		return fmt.Errorf("repository: failed to clear cart %s: %w", cartID, err)
	}

	return nil
}
