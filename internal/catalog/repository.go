package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMealNotFound = errors.New("meal not found")

// Sort keys accepted by the browse queries. Every key maps to a fixed ORDER BY
// clause; anything else falls back to name_asc so no caller input ever reaches
// the SQL text.
var restaurantSortMap = map[string]string{
	"name_asc":  "name ASC",
	"name_desc": "name DESC",
}

var mealSortMap = map[string]string{
	"name_asc":   "name ASC",
	"name_desc":  "name DESC",
	"price_asc":  "COALESCE(surplus_price, base_price) ASC",
	"price_desc": "COALESCE(surplus_price, base_price) DESC",
}

type ListParams struct {
	Search      string
	Sort        string
	Limit       int
	Offset      int
	SurplusOnly bool
}

type Repository interface {
	ListRestaurants(ctx context.Context, params ListParams) ([]Restaurant, error)
	ListMeals(ctx context.Context, restaurantID uuid.UUID, params ListParams) ([]MenuItem, error)
	ListSurplusMeals(ctx context.Context, limit int) ([]MenuItem, error)
	GetMealByID(ctx context.Context, id uuid.UUID) (*MenuItem, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ListRestaurants(ctx context.Context, params ListParams) ([]Restaurant, error) {
	orderBy, ok := restaurantSortMap[params.Sort]
	if !ok {
		orderBy = restaurantSortMap["name_asc"]
	}

	query := fmt.Sprintf(`
		SELECT id, name, address, latitude, longitude
		FROM restaurants
		WHERE ($1 = '' OR lower(name) LIKE '%%' || lower($1) || '%%')
		ORDER BY %s
		LIMIT $2 OFFSET $3
	`, orderBy)

	rows, err := r.db.Query(ctx, query, params.Search, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query restaurants: %w", err)
	}
	defer rows.Close()

	restaurants := make([]Restaurant, 0)
	for rows.Next() {
		var rest Restaurant
		if err := rows.Scan(&rest.ID, &rest.Name, &rest.Address, &rest.Latitude, &rest.Longitude); err != nil {
			return nil, fmt.Errorf("repository: failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating restaurants: %w", err)
	}

	return restaurants, nil
}

func (r *postgresRepository) ListMeals(ctx context.Context, restaurantID uuid.UUID, params ListParams) ([]MenuItem, error) {
	orderBy, ok := mealSortMap[params.Sort]
	if !ok {
		orderBy = mealSortMap["name_asc"]
	}

	query := fmt.Sprintf(`
		SELECT id, restaurant_id, name, base_price, quantity, surplus_price, created_at
		FROM meals
		WHERE restaurant_id = $1
		  AND ($2 = '' OR lower(name) LIKE '%%' || lower($2) || '%%')
		  AND (NOT $3 OR (surplus_price IS NOT NULL AND quantity > 0))
		ORDER BY %s
		LIMIT $4 OFFSET $5
	`, orderBy)

	rows, err := r.db.Query(ctx, query, restaurantID, params.Search, params.SurplusOnly, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query meals for restaurant %s: %w", restaurantID, err)
	}
	defer rows.Close()

	return scanMeals(rows)
}

func (r *postgresRepository) ListSurplusMeals(ctx context.Context, limit int) ([]MenuItem, error) {
	query := `
		SELECT id, restaurant_id, name, base_price, quantity, surplus_price, created_at
		FROM meals
		WHERE surplus_price IS NOT NULL AND quantity > 0
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query surplus meals: %w", err)
	}
	defer rows.Close()

	return scanMeals(rows)
}

func (r *postgresRepository) GetMealByID(ctx context.Context, id uuid.UUID) (*MenuItem, error) {
	query := `
		SELECT id, restaurant_id, name, base_price, quantity, surplus_price, created_at
		FROM meals
		WHERE id = $1
	`

	var m MenuItem
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.RestaurantID, &m.Name, &m.BasePrice, &m.Quantity, &m.SurplusPrice, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMealNotFound
		}
		return nil, fmt.Errorf("repository: failed to select meal by id %s: %w", id, err)
	}

	return &m, nil
}

func scanMeals(rows pgx.Rows) ([]MenuItem, error) {
	meals := make([]MenuItem, 0)
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.BasePrice, &m.Quantity, &m.SurplusPrice, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating meals: %w", err)
	}

	return meals, nil
}
