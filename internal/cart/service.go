package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mealrescue/marketplace/internal/catalog"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

type Service interface {
	ViewForUser(ctx context.Context, userID string) (*View, error)
	AddItem(ctx context.Context, userID string, mealID uuid.UUID, qty int) (*View, error)
	SetItemQuantity(ctx context.Context, userID string, itemID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID string) (*View, error)
}

type service struct {
	repo  Repository
	meals catalog.Repository
}

func NewService(repo Repository, meals catalog.Repository) Service {
	return &service{repo: repo, meals: meals}
}

func (s *service) ViewForUser(ctx context.Context, userID string) (*View, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to get or create cart")
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}

	view, err := s.repo.View(ctx, c.ID)
	if err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to read cart")
		return nil, fmt.Errorf("service: failed to read cart: %w", err)
	}

	return view, nil
}

// AddItem increments the quantity of a meal in the user's cart. The inventory
// check here is optimistic early feedback only; checkout re-validates under a
// row lock.
func (s *service) AddItem(ctx context.Context, userID string, mealID uuid.UUID, qty int) (*View, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}

	meal, err := s.meals.GetMealByID(ctx, mealID)
	if err != nil {
		if errors.Is(err, catalog.ErrMealNotFound) {
			return nil, catalog.ErrMealNotFound
		}
		log.Error().Err(err).Stringer("meal_id", mealID).Msg("service: failed to fetch meal for cart add")
		return nil, fmt.Errorf("service: failed to fetch meal: %w", err)
	}

	current, err := s.repo.ItemQuantity(ctx, c.ID, mealID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read current cart quantity: %w", err)
	}
	newQty := current + qty

	if err := checkAvailability(meal, newQty); err != nil {
		return nil, err
	}

	if err := s.repo.UpsertItem(ctx, c.ID, mealID, newQty); err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Stringer("meal_id", mealID).Msg("service: failed to upsert cart item")
		return nil, fmt.Errorf("service: failed to upsert cart item: %w", err)
	}

	return s.repo.View(ctx, c.ID)
}

func (s *service) SetItemQuantity(ctx context.Context, userID string, itemID uuid.UUID, qty int) (*View, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}

	item, err := s.repo.GetItem(ctx, c.ID, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch cart item: %w", err)
	}

	meal, err := s.meals.GetMealByID(ctx, item.MealID)
	if err != nil {
		if errors.Is(err, catalog.ErrMealNotFound) {
			return nil, catalog.ErrMealNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch meal: %w", err)
	}

	if err := checkAvailability(meal, qty); err != nil {
		return nil, err
	}

	if err := s.repo.SetItemQuantity(ctx, itemID, qty); err != nil {
		return nil, fmt.Errorf("service: failed to set cart item quantity: %w", err)
	}

	return s.repo.View(ctx, c.ID)
}

func (s *service) RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*View, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}

	if err := s.repo.RemoveItem(ctx, c.ID, itemID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("service: failed to remove cart item: %w", err)
	}

	return s.repo.View(ctx, c.ID)
}

func (s *service) Clear(ctx context.Context, userID string) (*View, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}

	if err := s.repo.Clear(ctx, c.ID); err != nil {
		return nil, fmt.Errorf("service: failed to clear cart: %w", err)
	}

	return s.repo.View(ctx, c.ID)
}

// checkAvailability rejects quantities a surplus offer cannot cover. Regular
// items are not quantity-limited.
func checkAvailability(meal *catalog.MenuItem, wantQty int) error {
	if pricing, ok := meal.Pricing().(catalog.SurplusPricing); ok && wantQty > pricing.Quantity {
		return &catalog.InsufficientInventoryError{
			MealID:    meal.ID,
			MealName:  meal.Name,
			Available: pricing.Quantity,
			Requested: wantQty,
		}
	}
	return nil
}
