package catalog

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Service interface {
	ListRestaurants(ctx context.Context, params ListParams) ([]Restaurant, error)
	ListMeals(ctx context.Context, restaurantID uuid.UUID, params ListParams) ([]MenuItem, error)
	ListSurplusMeals(ctx context.Context, limit int) ([]MenuItem, error)
	GetMealByID(ctx context.Context, id uuid.UUID) (*MenuItem, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (s *service) ListRestaurants(ctx context.Context, params ListParams) ([]Restaurant, error) {
	params.Limit = clampLimit(params.Limit)
	if params.Offset < 0 {
		params.Offset = 0
	}

	restaurants, err := s.repo.ListRestaurants(ctx, params)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list restaurants")
		return nil, fmt.Errorf("service: failed to list restaurants: %w", err)
	}

	return restaurants, nil
}

func (s *service) ListMeals(ctx context.Context, restaurantID uuid.UUID, params ListParams) ([]MenuItem, error) {
	params.Limit = clampLimit(params.Limit)
	if params.Offset < 0 {
		params.Offset = 0
	}

	meals, err := s.repo.ListMeals(ctx, restaurantID, params)
	if err != nil {
		log.Error().Err(err).Stringer("restaurant_id", restaurantID).Msg("service: failed to list meals")
		return nil, fmt.Errorf("service: failed to list meals: %w", err)
	}

	return meals, nil
}

func (s *service) ListSurplusMeals(ctx context.Context, limit int) ([]MenuItem, error) {
	meals, err := s.repo.ListSurplusMeals(ctx, clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list surplus meals")
		return nil, fmt.Errorf("service: failed to list surplus meals: %w", err)
	}

	return meals, nil
}

func (s *service) GetMealByID(ctx context.Context, id uuid.UUID) (*MenuItem, error) {
	meal, err := s.repo.GetMealByID(ctx, id)
	if err != nil {
		if err == ErrMealNotFound {
			return nil, ErrMealNotFound
		}
		log.Error().Err(err).Stringer("meal_id", id).Msg("service: failed to fetch meal")
		return nil, fmt.Errorf("service: failed to fetch meal: %w", err)
	}

	return meal, nil
}
