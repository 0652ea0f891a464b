package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mealrescue/marketplace/internal/cart"
	"github.com/mealrescue/marketplace/internal/notify"
	"github.com/mealrescue/marketplace/internal/staff"
)

var ErrInvalidLines = errors.New("each line needs a meal id and a positive qty")

type Service interface {
	Checkout(ctx context.Context, userID string) (*Order, error)
	Create(ctx context.Context, userID string, restaurantID uuid.UUID, lines []LineInput) (*Order, error)
	GetByID(ctx context.Context, userID string, orderID uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Timeline(ctx context.Context, userID string, orderID uuid.UUID) ([]StatusEvent, error)
	Cancel(ctx context.Context, userID string, orderID uuid.UUID) (*Order, error)
	Transition(ctx context.Context, actorID string, orderID uuid.UUID, target OrderStatus) (*Order, error)
}

type service struct {
	repo     Repository
	carts    cart.Repository
	staff    staff.Lookup
	notifier notify.Notifier
}

func NewService(repo Repository, carts cart.Repository, staffLookup staff.Lookup, notifier notify.Notifier) Service {
	return &service{
		repo:     repo,
		carts:    carts,
		staff:    staffLookup,
		notifier: notifier,
	}
}

func (s *service) Checkout(ctx context.Context, userID string) (*Order, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to resolve cart for checkout")
		return nil, fmt.Errorf("service: failed to resolve cart: %w", err)
	}

	ord, err := s.repo.CheckoutCart(ctx, c.ID, userID)
	if err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", ord.ID).Str("user_id", userID).Float64("total", ord.Total).Msg("service: checkout completed")
	s.publish(ctx, ord)

	return ord, nil
}

func (s *service) Create(ctx context.Context, userID string, restaurantID uuid.UUID, lines []LineInput) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrInvalidLines
	}
	for _, line := range lines {
		if line.MealID == uuid.Nil || line.Qty <= 0 {
			return nil, ErrInvalidLines
		}
	}

	ord, err := s.repo.CreateOrder(ctx, userID, restaurantID, lines)
	if err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", ord.ID).Str("user_id", userID).Msg("service: order created")
	s.publish(ctx, ord)

	return ord, nil
}

func (s *service) GetByID(ctx context.Context, userID string, orderID uuid.UUID) (*Order, error) {
	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID {
		return nil, ErrForbidden
	}

	return ord, nil
}

func (s *service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

func (s *service) Timeline(ctx context.Context, userID string, orderID uuid.UUID) ([]StatusEvent, error) {
	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID {
		return nil, ErrForbidden
	}

	return s.repo.Timeline(ctx, orderID)
}

// Cancel is the customer-driven transition: owner only, pending only.
func (s *service) Cancel(ctx context.Context, userID string, orderID uuid.UUID) (*Order, error) {
	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID {
		return nil, ErrForbidden
	}

	cancelled, err := s.repo.Cancel(ctx, orderID)
	if err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", orderID).Str("user_id", userID).Msg("service: order cancelled")
	s.publish(ctx, cancelled)

	return cancelled, nil
}

// Transition applies a staff-driven forward transition.
func (s *service) Transition(ctx context.Context, actorID string, orderID uuid.UUID, target OrderStatus) (*Order, error) {
	if !ForwardStatuses[target] {
		return nil, &InvalidTransitionError{To: target}
	}

	// Resolve the order before the staff check so a missing order is a 404,
	// not a 403 from the membership join matching nothing.
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	isStaff, err := s.staff.IsStaffForOrder(ctx, actorID, orderID)
	if err != nil {
		log.Error().Err(err).Str("actor_id", actorID).Stringer("order_id", orderID).Msg("service: failed to check staff membership")
		return nil, fmt.Errorf("service: failed to check staff membership: %w", err)
	}
	if !isStaff {
		return nil, ErrForbidden
	}

	ord, err := s.repo.Transition(ctx, orderID, target)
	if err != nil {
		return nil, err
	}

	log.Info().
		Stringer("order_id", orderID).
		Str("actor_id", actorID).
		Stringer("new_status", target).
		Msg("service: order status updated")
	s.publish(ctx, ord)

	return ord, nil
}

// publish emits the committed status change. Failures are logged, never
// surfaced: the transition already happened.
func (s *service) publish(ctx context.Context, ord *Order) {
	err := s.notifier.OrderStatusChanged(ctx, notify.StatusNotification{
		OrderID:      ord.ID,
		UserID:       ord.UserID,
		RestaurantID: ord.RestaurantID,
		Status:       string(ord.Status),
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", ord.ID).Msg("service: failed to publish status notification")
	}
}
