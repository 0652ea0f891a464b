package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealrescue/marketplace/internal/auth"
	"github.com/mealrescue/marketplace/internal/catalog"
	handler "github.com/mealrescue/marketplace/internal/handler/http"
	"github.com/mealrescue/marketplace/internal/order"
)

type mockOrderService struct {
	checkoutFunc   func(ctx context.Context, userID string) (*order.Order, error)
	createFunc     func(ctx context.Context, userID string, restaurantID uuid.UUID, lines []order.LineInput) (*order.Order, error)
	getByIDFunc    func(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error)
	listByUserFunc func(ctx context.Context, userID string) ([]order.Order, error)
	timelineFunc   func(ctx context.Context, userID string, orderID uuid.UUID) ([]order.StatusEvent, error)
	cancelFunc     func(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error)
	transitionFunc func(ctx context.Context, actorID string, orderID uuid.UUID, target order.OrderStatus) (*order.Order, error)
}

func (m *mockOrderService) Checkout(ctx context.Context, userID string) (*order.Order, error) {
	return m.checkoutFunc(ctx, userID)
}

func (m *mockOrderService) Create(ctx context.Context, userID string, restaurantID uuid.UUID, lines []order.LineInput) (*order.Order, error) {
	return m.createFunc(ctx, userID, restaurantID, lines)
}

func (m *mockOrderService) GetByID(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, userID, orderID)
}

func (m *mockOrderService) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return m.listByUserFunc(ctx, userID)
}

func (m *mockOrderService) Timeline(ctx context.Context, userID string, orderID uuid.UUID) ([]order.StatusEvent, error) {
	return m.timelineFunc(ctx, userID, orderID)
}

func (m *mockOrderService) Cancel(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error) {
	return m.cancelFunc(ctx, userID, orderID)
}

func (m *mockOrderService) Transition(ctx context.Context, actorID string, orderID uuid.UUID, target order.OrderStatus) (*order.Order, error) {
	return m.transitionFunc(ctx, actorID, orderID, target)
}

// newOrderRouter mounts the handler behind a stub identity so requests arrive
// authenticated as the given user.
func newOrderRouter(service order.Service, userID string) chi.Router {
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithIdentity(r.Context(), auth.Identity{ID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	handler.NewOrderHandler(service, nil).RegisterRoutes(router)
	return router
}

func TestOrderHandler_Checkout_Created(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	service := &mockOrderService{
		checkoutFunc: func(ctx context.Context, userID string) (*order.Order, error) {
			assert.Equal(t, "user-1", userID)
			return &order.Order{ID: orderID, UserID: userID, Status: order.StatusPending, Total: 10.00}, nil
		},
	}

	router := newOrderRouter(service, "user-1")
	req := httptest.NewRequest(http.MethodPost, "/cart/checkout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, orderID, got.ID)
	assert.Equal(t, order.StatusPending, got.Status)
}

func TestOrderHandler_Checkout_DomainErrorMapping(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "empty cart", err: order.ErrEmptyCart, expectedCode: http.StatusBadRequest},
		{name: "multi restaurant cart", err: order.ErrMultiRestaurantCart, expectedCode: http.StatusBadRequest},
		{
			name: "insufficient inventory",
			err: &catalog.InsufficientInventoryError{
				MealName: "Soup", Available: 1, Requested: 3,
			},
			expectedCode: http.StatusConflict,
		},
		{name: "internal failure", err: assert.AnError, expectedCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service := &mockOrderService{
				checkoutFunc: func(ctx context.Context, userID string) (*order.Order, error) {
					return nil, tc.err
				},
			}

			router := newOrderRouter(service, "user-1")
			req := httptest.NewRequest(http.MethodPost, "/cart/checkout", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedCode, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tc.expectedCode == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", body["error"])
			} else {
				assert.Equal(t, tc.err.Error(), body["error"])
			}
		})
	}
}

func TestOrderHandler_CreateOrder_Validation(t *testing.T) {
	mealID := uuid.Must(uuid.NewV4()).String()
	restaurantID := uuid.Must(uuid.NewV4()).String()

	testCases := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{name: "not json", body: "{", expectedCode: http.StatusBadRequest},
		{name: "unknown field", body: `{"restaurant_id":"` + restaurantID + `","items":[],"bogus":1}`, expectedCode: http.StatusBadRequest},
		{name: "missing items", body: `{"restaurant_id":"` + restaurantID + `"}`, expectedCode: http.StatusBadRequest},
		{name: "zero qty line", body: `{"restaurant_id":"` + restaurantID + `","items":[{"meal_id":"` + mealID + `","qty":0}]}`, expectedCode: http.StatusBadRequest},
		{name: "bad meal uuid", body: `{"restaurant_id":"` + restaurantID + `","items":[{"meal_id":"nope","qty":1}]}`, expectedCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			serviceCalled := false
			service := &mockOrderService{
				createFunc: func(ctx context.Context, userID string, restaurantID uuid.UUID, lines []order.LineInput) (*order.Order, error) {
					serviceCalled = true
					return &order.Order{}, nil
				},
			}

			router := newOrderRouter(service, "user-1")
			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.False(t, serviceCalled, "expected validation to stop before the service")
		})
	}
}

func TestOrderHandler_CreateOrder_Created(t *testing.T) {
	mealID := uuid.Must(uuid.NewV4())
	restaurantID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	service := &mockOrderService{
		createFunc: func(ctx context.Context, userID string, gotRestaurant uuid.UUID, lines []order.LineInput) (*order.Order, error) {
			assert.Equal(t, restaurantID, gotRestaurant)
			require.Len(t, lines, 1)
			assert.Equal(t, mealID, lines[0].MealID)
			assert.Equal(t, 2, lines[0].Qty)
			return &order.Order{ID: orderID, UserID: userID, Status: order.StatusPending}, nil
		},
	}

	body := `{"restaurant_id":"` + restaurantID.String() + `","items":[{"meal_id":"` + mealID.String() + `","qty":2}]}`
	router := newOrderRouter(service, "user-1")
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestOrderHandler_GetOrder(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	testCases := []struct {
		name         string
		path         string
		err          error
		expectedCode int
	}{
		{name: "found", path: "/orders/" + orderID.String(), err: nil, expectedCode: http.StatusOK},
		{name: "not owner", path: "/orders/" + orderID.String(), err: order.ErrForbidden, expectedCode: http.StatusForbidden},
		{name: "unknown order", path: "/orders/" + orderID.String(), err: order.ErrOrderNotFound, expectedCode: http.StatusNotFound},
		{name: "malformed id", path: "/orders/not-a-uuid", err: nil, expectedCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service := &mockOrderService{
				getByIDFunc: func(ctx context.Context, userID string, id uuid.UUID) (*order.Order, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return &order.Order{ID: id, UserID: userID}, nil
				},
			}

			router := newOrderRouter(service, "user-1")
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedCode, rec.Code)
		})
	}
}

func TestOrderHandler_Cancel_InvalidTransition(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	service := &mockOrderService{
		cancelFunc: func(ctx context.Context, userID string, id uuid.UUID) (*order.Order, error) {
			return nil, &order.InvalidTransitionError{From: order.StatusReady, To: order.StatusCancelled}
		},
	}

	router := newOrderRouter(service, "user-1")
	req := httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")
}

func TestOrderHandler_TransitionRoutes_TargetStatus(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	routes := map[string]order.OrderStatus{
		"accept":    order.StatusAccepted,
		"preparing": order.StatusPreparing,
		"ready":     order.StatusReady,
		"complete":  order.StatusCompleted,
	}

	for suffix, expected := range routes {
		t.Run(suffix, func(t *testing.T) {
			var gotTarget order.OrderStatus
			service := &mockOrderService{
				transitionFunc: func(ctx context.Context, actorID string, id uuid.UUID, target order.OrderStatus) (*order.Order, error) {
					gotTarget = target
					return &order.Order{ID: id, Status: target}, nil
				},
			}

			router := newOrderRouter(service, "staff-1")
			req := httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/"+suffix, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, expected, gotTarget)
		})
	}
}

func TestOrderHandler_Transition_UnknownOrderNotFound(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	service := &mockOrderService{
		transitionFunc: func(ctx context.Context, actorID string, id uuid.UUID, target order.OrderStatus) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}

	router := newOrderRouter(service, "staff-1")
	req := httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandler_Transition_NonStaffForbidden(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	service := &mockOrderService{
		transitionFunc: func(ctx context.Context, actorID string, id uuid.UUID, target order.OrderStatus) (*order.Order, error) {
			return nil, order.ErrForbidden
		},
	}

	router := newOrderRouter(service, "customer-1")
	req := httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrderHandler_Timeline(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	service := &mockOrderService{
		timelineFunc: func(ctx context.Context, userID string, id uuid.UUID) ([]order.StatusEvent, error) {
			return []order.StatusEvent{
				{OrderID: id, Status: order.StatusPending},
				{OrderID: id, Status: order.StatusAccepted},
			}, nil
		},
	}

	router := newOrderRouter(service, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID.String()+"/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got handler.TimelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, orderID, got.OrderID)
	require.Len(t, got.Events, 2)
	assert.Equal(t, order.StatusPending, got.Events[0].Status)
}
