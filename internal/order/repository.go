package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mealrescue/marketplace/internal/catalog"
)

type Repository interface {
	CheckoutCart(ctx context.Context, cartID uuid.UUID, userID string) (*Order, error)
	CreateOrder(ctx context.Context, userID string, restaurantID uuid.UUID, lines []LineInput) (*Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Timeline(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, target OrderStatus) (*Order, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// lockedLine is one order line whose meal row is locked by the current
// transaction.
type lockedLine struct {
	meal catalog.MenuItem
	qty  int
}

func (r *postgresRepository) begin(ctx context.Context) (pgx.Tx, func(*error), error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	finish := func(errp *error) {
		if *errp != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			*errp = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}

	return tx, finish, nil
}

// CheckoutCart converts the cart into a pending order in one all-or-nothing
// transaction: lock meal rows, validate, price, insert order rows, seed the
// timeline, decrement surplus inventory, clear the cart.
func (r *postgresRepository) CheckoutCart(ctx context.Context, cartID uuid.UUID, userID string) (_ *Order, err error) {
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { finish(&err) }()

	// Cheap structural checks first, so an empty or mixed-restaurant cart
	// fails before any meal row is locked.
	var restaurantCount int
	err = tx.QueryRow(ctx,
		`SELECT count(DISTINCT m.restaurant_id)
		 FROM cart_items ci JOIN meals m ON m.id = ci.meal_id
		 WHERE ci.cart_id = $1`, cartID,
	).Scan(&restaurantCount)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to inspect cart %s: %w", cartID, err)
	}
	if restaurantCount == 0 {
		return nil, ErrEmptyCart
	}
	if restaurantCount > 1 {
		return nil, ErrMultiRestaurantCart
	}

	// Lock every referenced meal row. The stable ORDER BY m.id keeps
	// concurrent checkouts over overlapping item sets from deadlocking.
	rows, err := tx.Query(ctx, `
		SELECT ci.qty, m.id, m.restaurant_id, m.name, m.base_price, m.quantity, m.surplus_price
		FROM cart_items ci
		JOIN meals m ON m.id = ci.meal_id
		WHERE ci.cart_id = $1
		ORDER BY m.id
		FOR UPDATE OF m
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock cart meals for cart %s: %w", cartID, err)
	}

	lines, err := scanLockedLines(rows)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	ord, err := createOrderTx(ctx, tx, userID, lines[0].meal.RestaurantID, lines)
	if err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return nil, fmt.Errorf("repository: failed to clear cart %s after checkout: %w", cartID, err)
	}

	return ord, nil
}

// CreateOrder is the direct order path. It runs through the same locking,
// validation and pricing engine as checkout, just with caller-supplied lines
// instead of cart rows.
func (r *postgresRepository) CreateOrder(ctx context.Context, userID string, restaurantID uuid.UUID, lines []LineInput) (_ *Order, err error) {
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { finish(&err) }()

	mealIDs := make([]uuid.UUID, 0, len(lines))
	qtyByMeal := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if _, seen := qtyByMeal[line.MealID]; !seen {
			mealIDs = append(mealIDs, line.MealID)
		}
		qtyByMeal[line.MealID] += line.Qty
	}

	rows, err := tx.Query(ctx, `
		SELECT id, restaurant_id, name, base_price, quantity, surplus_price
		FROM meals
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, mealIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock meals: %w", err)
	}

	locked := make([]lockedLine, 0, len(mealIDs))
	for rows.Next() {
		var m catalog.MenuItem
		if err = rows.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.BasePrice, &m.Quantity, &m.SurplusPrice); err != nil {
			rows.Close()
			return nil, fmt.Errorf("repository: failed to scan locked meal: %w", err)
		}
		locked = append(locked, lockedLine{meal: m, qty: qtyByMeal[m.ID]})
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating locked meals: %w", err)
	}

	if len(locked) != len(mealIDs) {
		return nil, catalog.ErrMealNotFound
	}
	for _, line := range locked {
		if line.meal.RestaurantID != restaurantID {
			return nil, ErrMultiRestaurantCart
		}
	}

	return createOrderTx(ctx, tx, userID, restaurantID, locked)
}

// createOrderTx validates availability, prices each line and writes the
// order, its items, the initial pending timeline event and the surplus
// inventory decrements. Meal rows must already be locked by tx.
func createOrderTx(ctx context.Context, tx pgx.Tx, userID string, restaurantID uuid.UUID, lines []lockedLine) (*Order, error) {
	now := time.Now().UTC()

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate order ID: %w", err)
	}

	ord := &Order{
		ID:           orderID,
		UserID:       userID,
		RestaurantID: restaurantID,
		Status:       StatusPending,
		CreatedAt:    now,
		Items:        make([]Item, 0, len(lines)),
	}

	for _, line := range lines {
		unitPrice := 0.0
		switch pricing := line.meal.Pricing().(type) {
		case catalog.SurplusPricing:
			if pricing.Quantity < line.qty {
				return nil, &catalog.InsufficientInventoryError{
					MealID:    line.meal.ID,
					MealName:  line.meal.Name,
					Available: pricing.Quantity,
					Requested: line.qty,
				}
			}
			unitPrice = pricing.Price
		case catalog.RegularPricing:
			unitPrice = pricing.Price
		}

		itemID, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("repository: failed to generate order item ID: %w", err)
		}

		ord.Items = append(ord.Items, Item{
			ID:       itemID,
			OrderID:  orderID,
			MealID:   line.meal.ID,
			MealName: line.meal.Name,
			Qty:      line.qty,
			Price:    unitPrice * float64(line.qty),
		})
		ord.Total += unitPrice * float64(line.qty)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, restaurant_id, status, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ord.ID, ord.UserID, ord.RestaurantID, string(ord.Status), ord.Total, ord.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range ord.Items {
		item := &ord.Items[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, meal_id, qty, price)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.MealID, item.Qty, item.Price)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_events (order_id, status, created_at)
		VALUES ($1, $2, $3)
	`, ord.ID, string(StatusPending), now)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to seed status timeline for order %s: %w", orderID, err)
	}

	// Inventory moves only for surplus offers; regular items are unlimited.
	for _, line := range lines {
		if _, ok := line.meal.Pricing().(catalog.SurplusPricing); !ok {
			continue
		}
		_, err = tx.Exec(ctx, `
			UPDATE meals SET quantity = quantity - $1 WHERE id = $2
		`, line.qty, line.meal.ID)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to decrement inventory for meal %s: %w", line.meal.ID, err)
		}
	}

	return ord, nil
}

// Cancel moves a pending order to cancelled, restoring surplus inventory for
// every order item whose meal is a surplus offer. The order total stays
// frozen.
func (r *postgresRepository) Cancel(ctx context.Context, orderID uuid.UUID) (_ *Order, err error) {
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { finish(&err) }()

	ord, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if ord.Status != StatusPending {
		return nil, &InvalidTransitionError{From: ord.Status, To: StatusCancelled}
	}

	_, err = tx.Exec(ctx, `
		UPDATE meals m
		SET quantity = m.quantity + oi.qty
		FROM order_items oi
		WHERE oi.order_id = $1
		  AND oi.meal_id = m.id
		  AND m.surplus_price IS NOT NULL
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to restore inventory for order %s: %w", orderID, err)
	}

	if err = setStatusTx(ctx, tx, ord, StatusCancelled); err != nil {
		return nil, err
	}

	return ord, nil
}

// Transition applies a forward status change under the order row lock.
func (r *postgresRepository) Transition(ctx context.Context, orderID uuid.UUID, target OrderStatus) (_ *Order, err error) {
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { finish(&err) }()

	ord, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(ord.Status, target) {
		return nil, &InvalidTransitionError{From: ord.Status, To: target}
	}

	if err = setStatusTx(ctx, tx, ord, target); err != nil {
		return nil, err
	}

	return ord, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*Order, error) {
	var ord Order
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, restaurant_id, status, total, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&ord.ID, &ord.UserID, &ord.RestaurantID, &ord.Status, &ord.Total, &ord.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock order %s: %w", orderID, err)
	}

	return &ord, nil
}

// setStatusTx updates the order status and appends the matching timeline
// event. Events are never rewritten; the timeline only grows.
func setStatusTx(ctx context.Context, tx pgx.Tx, ord *Order, target OrderStatus) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(target), ord.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update status for order %s: %w", ord.ID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_events (order_id, status, created_at)
		VALUES ($1, $2, $3)
	`, ord.ID, string(target), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to append status event for order %s: %w", ord.ID, err)
	}

	ord.Status = target
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var ord Order
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, restaurant_id, status, total, created_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&ord.ID, &ord.UserID, &ord.RestaurantID, &ord.Status, &ord.Total, &ord.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.meal_id, m.name, oi.qty, oi.price
		FROM order_items oi
		JOIN meals m ON m.id = oi.meal_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	ord.Items = make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MealID, &item.MealName, &item.Qty, &item.Price); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, err)
		}
		ord.Items = append(ord.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}

	return &ord, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orderRows, err := r.db.Query(ctx, `
		SELECT id, user_id, restaurant_id, status, total, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %s: %w", userID, err)
	}
	defer orderRows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for orderRows.Next() {
		var ord Order
		err := orderRows.Scan(&ord.ID, &ord.UserID, &ord.RestaurantID, &ord.Status, &ord.Total, &ord.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user %s: %w", userID, err)
		}
		ord.Items = make([]Item, 0)
		ordersMap[ord.ID] = &ord
		orderIDs = append(orderIDs, ord.ID)
	}
	if err := orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders for user %s: %w", userID, err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.meal_id, m.name, oi.qty, oi.price
		FROM order_items oi
		JOIN meals m ON m.id = oi.meal_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for user %s: %w", userID, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item Item
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.MealID, &item.MealName, &item.Qty, &item.Price); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for user %s: %w", userID, err)
		}
		if ord, ok := ordersMap[item.OrderID]; ok {
			ord.Items = append(ord.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for user %s: %w", userID, err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}

	return result, nil
}

func (r *postgresRepository) Timeline(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT order_id, status, created_at
		FROM order_status_events
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query timeline for order %s: %w", orderID, err)
	}
	defer rows.Close()

	events := make([]StatusEvent, 0)
	for rows.Next() {
		var ev StatusEvent
		if err := rows.Scan(&ev.OrderID, &ev.Status, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan status event for order %s: %w", orderID, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating timeline for order %s: %w", orderID, err)
	}

	return events, nil
}

func scanLockedLines(rows pgx.Rows) ([]lockedLine, error) {
	defer rows.Close()

	lines := make([]lockedLine, 0)
	for rows.Next() {
		var line lockedLine
		err := rows.Scan(
			&line.qty,
			&line.meal.ID, &line.meal.RestaurantID, &line.meal.Name,
			&line.meal.BasePrice, &line.meal.Quantity, &line.meal.SurplusPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan locked cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating locked cart lines: %w", err)
	}

	return lines, nil
}
