package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mealrescue/marketplace/internal/auth"
	"github.com/mealrescue/marketplace/internal/order"
)

type OrderLineRequest struct {
	MealID string `json:"meal_id" validate:"required,uuid"`
	Qty    int    `json:"qty" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	RestaurantID string             `json:"restaurant_id" validate:"required,uuid"`
	Items        []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
}

type TimelineResponse struct {
	OrderID uuid.UUID           `json:"order_id"`
	Events  []order.StatusEvent `json:"events"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
	// placementLimiter guards the two order-placement endpoints; nil means
	// no rate limiting.
	placementLimiter func(http.Handler) http.Handler
}

func NewOrderHandler(service order.Service, placementLimiter func(http.Handler) http.Handler) *OrderHandler {
	return &OrderHandler{
		service:          service,
		validate:         validator.New(),
		placementLimiter: placementLimiter,
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	placement := router
	if h.placementLimiter != nil {
		placement = router.With(h.placementLimiter)
	}
	placement.Post("/cart/checkout", h.handleCheckout)
	placement.Post("/orders", h.handleCreateOrder)

	router.Get("/orders/mine", h.handleListMine)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Get("/orders/{id}/status", h.handleTimeline)
	router.Patch("/orders/{id}/cancel", h.handleCancel)
	router.Patch("/orders/{id}/accept", h.transitionHandler(order.StatusAccepted))
	router.Patch("/orders/{id}/preparing", h.transitionHandler(order.StatusPreparing))
	router.Patch("/orders/{id}/ready", h.transitionHandler(order.StatusReady))
	router.Patch("/orders/{id}/complete", h.transitionHandler(order.StatusCompleted))
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	ord, err := h.service.Checkout(r.Context(), identity.ID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, ord)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	var requestPayload CreateOrderRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create order request")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	restaurantID, err := uuid.FromString(requestPayload.RestaurantID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid restaurant_id")
		return
	}

	lines := make([]order.LineInput, 0, len(requestPayload.Items))
	for _, item := range requestPayload.Items {
		mealID, err := uuid.FromString(item.MealID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid meal_id")
			return
		}
		lines = append(lines, order.LineInput{MealID: mealID, Qty: item.Qty})
	}

	ord, err := h.service.Create(r.Context(), identity.ID, restaurantID, lines)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, ord)
}

func (h *OrderHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	orders, err := h.service.ListByUser(r.Context(), identity.ID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

// identityAndOrderID reads the caller identity and the {id} path parameter,
// writing the error response itself when either is missing.
func (h *OrderHandler) identityAndOrderID(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing identity")
		return auth.Identity{}, uuid.Nil, false
	}

	orderID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return auth.Identity{}, uuid.Nil, false
	}

	return identity, orderID, true
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	identity, orderID, ok := h.identityAndOrderID(w, r)
	if !ok {
		return
	}

	ord, err := h.service.GetByID(r.Context(), identity.ID, orderID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	identity, orderID, ok := h.identityAndOrderID(w, r)
	if !ok {
		return
	}

	events, err := h.service.Timeline(r.Context(), identity.ID, orderID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, TimelineResponse{OrderID: orderID, Events: events})
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	identity, orderID, ok := h.identityAndOrderID(w, r)
	if !ok {
		return
	}

	ord, err := h.service.Cancel(r.Context(), identity.ID, orderID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) transitionHandler(target order.OrderStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, orderID, ok := h.identityAndOrderID(w, r)
		if !ok {
			return
		}

		ord, err := h.service.Transition(r.Context(), identity.ID, orderID, target)
		if err != nil {
			respondWithDomainError(w, err)
			return
		}

		respondWithJSON(w, http.StatusOK, ord)
	}
}
