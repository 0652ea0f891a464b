package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/mealrescue/marketplace/internal/catalog"
)

type CatalogHandler struct {
	service catalog.Service
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/restaurants", h.handleListRestaurants)
	router.Get("/restaurants/{id}/meals", h.handleListMeals)
	router.Get("/meals", h.handleListSurplusMeals)
	router.Get("/meals/{id}", h.handleGetMeal)
}

func listParamsFromQuery(r *http.Request) catalog.ListParams {
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	surplusOnly, _ := strconv.ParseBool(query.Get("surplus_only"))

	return catalog.ListParams{
		Search:      query.Get("search"),
		Sort:        query.Get("sort"),
		Limit:       limit,
		Offset:      offset,
		SurplusOnly: surplusOnly,
	}
}

func (h *CatalogHandler) handleListRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.service.ListRestaurants(r.Context(), listParamsFromQuery(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, restaurants)
}

func (h *CatalogHandler) handleListMeals(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	meals, err := h.service.ListMeals(r.Context(), restaurantID, listParamsFromQuery(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, meals)
}

func (h *CatalogHandler) handleListSurplusMeals(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	meals, err := h.service.ListSurplusMeals(r.Context(), limit)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, meals)
}

func (h *CatalogHandler) handleGetMeal(w http.ResponseWriter, r *http.Request) {
	mealID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	meal, err := h.service.GetMealByID(r.Context(), mealID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, meal)
}
