package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/mealrescue/marketplace/internal/cart"
	"github.com/mealrescue/marketplace/internal/catalog"
	"github.com/mealrescue/marketplace/internal/order"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError sends a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = "failed on the '" + fieldErr.Tag() + "' rule"
	}
	return details
}

// mapErrorToStatusCode translates domain sentinels into HTTP status codes.
// Anything unrecognized is an internal error and its detail stays out of the
// response body.
func mapErrorToStatusCode(err error) int {
	var insufficientErr *catalog.InsufficientInventoryError
	var transitionErr *order.InvalidTransitionError

	switch {
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrMealNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound
	case errors.As(err, &insufficientErr):
		return http.StatusConflict
	case errors.As(err, &transitionErr),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrMultiRestaurantCart),
		errors.Is(err, order.ErrInvalidLines),
		errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the error text for codes the client may act on and a
// generic message for internal failures.
func clientMessage(code int, err error) string {
	if code == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed with internal error")
	}
	respondWithError(w, code, clientMessage(code, err))
}
