package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mealrescue/marketplace/internal/auth"
	"github.com/mealrescue/marketplace/internal/cart"
	"github.com/mealrescue/marketplace/internal/catalog"
	"github.com/mealrescue/marketplace/internal/config"
	"github.com/mealrescue/marketplace/internal/db"
	handler "github.com/mealrescue/marketplace/internal/handler/http"
	"github.com/mealrescue/marketplace/internal/notify"
	"github.com/mealrescue/marketplace/internal/order"
	"github.com/mealrescue/marketplace/internal/staff"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "marketplace").Logger()

	log.Info().Msg("Marketplace starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka notifier enabled")
	}

	var placementLimiter func(http.Handler) http.Handler
	if cfg.Redis.Addr != "" {
		rdb := rd.NewClient(&rd.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		placementLimiter = handler.RedisRateLimit(rdb, cfg.Redis.CheckoutLimit, cfg.Redis.CheckoutWindow)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Order placement rate limiting enabled")
	}

	catalogRepo := catalog.NewRepository(dbConn.Pool)
	cartRepo := cart.NewRepository(dbConn.Pool)
	orderRepo := order.NewRepository(dbConn.Pool)
	staffLookup := staff.NewLookup(dbConn.Pool)

	catalogService := catalog.NewService(catalogRepo)
	cartService := cart.NewService(cartRepo, catalogRepo)
	orderService := order.NewService(orderRepo, cartRepo, staffLookup, notifier)

	router := handler.NewRouter(
		auth.NewJWTProvider(cfg.Auth.JWTSecret),
		handler.NewCatalogHandler(catalogService),
		handler.NewCartHandler(cartService),
		handler.NewOrderHandler(orderService, placementLimiter),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
