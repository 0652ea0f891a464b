package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mealrescue/marketplace/internal/auth"
)

// NewRouter assembles the full HTTP surface. Everything except the health
// check sits behind the bearer-token identity middleware.
func NewRouter(
	provider auth.Provider,
	catalogHandler *CatalogHandler,
	cartHandler *CartHandler,
	orderHandler *OrderHandler,
) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	router.Group(func(protected chi.Router) {
		protected.Use(auth.Middleware(provider))
		catalogHandler.RegisterRoutes(protected)
		cartHandler.RegisterRoutes(protected)
		orderHandler.RegisterRoutes(protected)
	})

	return router
}
