package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealrescue/marketplace/internal/catalog"
)

type mockRepository struct {
	listRestaurantsFunc  func(ctx context.Context, params catalog.ListParams) ([]catalog.Restaurant, error)
	listMealsFunc        func(ctx context.Context, restaurantID uuid.UUID, params catalog.ListParams) ([]catalog.MenuItem, error)
	listSurplusMealsFunc func(ctx context.Context, limit int) ([]catalog.MenuItem, error)
	getMealByIDFunc      func(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error)
}

func (m *mockRepository) ListRestaurants(ctx context.Context, params catalog.ListParams) ([]catalog.Restaurant, error) {
	return m.listRestaurantsFunc(ctx, params)
}

func (m *mockRepository) ListMeals(ctx context.Context, restaurantID uuid.UUID, params catalog.ListParams) ([]catalog.MenuItem, error) {
	return m.listMealsFunc(ctx, restaurantID, params)
}

func (m *mockRepository) ListSurplusMeals(ctx context.Context, limit int) ([]catalog.MenuItem, error) {
	return m.listSurplusMealsFunc(ctx, limit)
}

func (m *mockRepository) GetMealByID(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error) {
	return m.getMealByIDFunc(ctx, id)
}

func TestService_ListRestaurants_ClampsPaging(t *testing.T) {
	testCases := []struct {
		name           string
		limit          int
		offset         int
		expectedLimit  int
		expectedOffset int
	}{
		{name: "zero limit gets default", limit: 0, offset: 0, expectedLimit: 20, expectedOffset: 0},
		{name: "negative values normalized", limit: -5, offset: -3, expectedLimit: 20, expectedOffset: 0},
		{name: "oversized limit capped", limit: 500, offset: 40, expectedLimit: 100, expectedOffset: 40},
		{name: "in-range values untouched", limit: 50, offset: 10, expectedLimit: 50, expectedOffset: 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got catalog.ListParams
			repo := &mockRepository{
				listRestaurantsFunc: func(ctx context.Context, params catalog.ListParams) ([]catalog.Restaurant, error) {
					got = params
					return []catalog.Restaurant{}, nil
				},
			}

			service := catalog.NewService(repo)
			_, err := service.ListRestaurants(context.Background(), catalog.ListParams{Limit: tc.limit, Offset: tc.offset})

			require.NoError(t, err)
			assert.Equal(t, tc.expectedLimit, got.Limit)
			assert.Equal(t, tc.expectedOffset, got.Offset)
		})
	}
}

func TestService_ListSurplusMeals_ClampsLimit(t *testing.T) {
	var gotLimit int
	repo := &mockRepository{
		listSurplusMealsFunc: func(ctx context.Context, limit int) ([]catalog.MenuItem, error) {
			gotLimit = limit
			return []catalog.MenuItem{}, nil
		},
	}

	service := catalog.NewService(repo)
	_, err := service.ListSurplusMeals(context.Background(), 1000)

	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
}

func TestService_GetMealByID_NotFoundPassesThrough(t *testing.T) {
	repo := &mockRepository{
		getMealByIDFunc: func(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error) {
			return nil, catalog.ErrMealNotFound
		},
	}

	service := catalog.NewService(repo)
	_, err := service.GetMealByID(context.Background(), uuid.Must(uuid.NewV4()))

	assert.ErrorIs(t, err, catalog.ErrMealNotFound)
}

func TestService_ListMeals_WrapsRepositoryError(t *testing.T) {
	repoErr := errors.New("connection reset")
	repo := &mockRepository{
		listMealsFunc: func(ctx context.Context, restaurantID uuid.UUID, params catalog.ListParams) ([]catalog.MenuItem, error) {
			return nil, repoErr
		},
	}

	service := catalog.NewService(repo)
	_, err := service.ListMeals(context.Background(), uuid.Must(uuid.NewV4()), catalog.ListParams{})

	assert.ErrorIs(t, err, repoErr)
}
