package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"facility-booking-backend/config"
	"facility-booking-backend/internal/api"
	"facility-booking-backend/internal/audit"
	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/db"
	"facility-booking-backend/internal/directory"
	"facility-booking-backend/internal/logging"
	"facility-booking-backend/internal/notification"
	"facility-booking-backend/internal/store"
	"facility-booking-backend/internal/timeutil"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}
	logging.Configure(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger := logging.WithComponent("main")
	logger.Info().Str("path", configPath).Str("timezone", cfg.Booking.Timezone).Msg("configuration loaded")

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Warn().Msg("VAPID keys are not configured, push notifications are disabled")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	clock := timeutil.SystemClock{}

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, &webpushOptions)
	if cfg.Broker.URL != "" {
		publisher, err := notification.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to broker")
		}
		defer publisher.Close()
		workerPool.WithPublisher(publisher)
		logger.Info().Str("exchange", cfg.Broker.Exchange).Msg("publishing booking events")
	}
	workerPool.Start(ctx)

	bookings := booking.NewService(appStore, audit.NewTrail(appStore, clock), workerPool, cfg.Booking, clock)

	// Facility list responses; flushed whenever the directory changes.
	responses := cache.New(time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, 10*time.Minute)

	directorySvc := directory.NewService(cfg.Directory, appStore).OnSync(func(int) { responses.Flush() })
	go directorySvc.Run(ctx)

	router := api.NewRouter(bookings, appStore, &webpushOptions, responses, cfg.Server)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}

	logger.Info().Msg("server gracefully stopped")
}
