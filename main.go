package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/routes"
	"customsdesk-backend/services"
	"customsdesk-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	config.SetLogLevel(cfg.LogLevel)
	logger := config.GetLogger()

	db, err := config.ConnectDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database: " + err.Error())
	}
	if err := config.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err.Error())
	}
	defer cleanup()

	app := services.NewApp(db, deps)
	if n, err := app.Validations.FailStale(ctx); err != nil {
		config.LogError(logger, "main", "main", "fail stale validations", nil, err)
	} else if n > 0 {
		logger.WithField("count", n).Warn("Marked interrupted validations as failed")
	}

	var scheduler *services.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = app.Scheduler()
		if err := scheduler.Start(); err != nil {
			logger.Fatal(err.Error())
		}
	}

	r := routes.SetupRouter(cfg, app)
	printRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Server listening")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: " + err.Error())
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	app.Close()
}

// buildDeps picks the storage, lock, numbering, validation and delivery
// backends from the configuration.
func buildDeps(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (services.Deps, func(), error) {
	deps := services.Deps{
		UndoWindow:        cfg.UndoWindow,
		ValidationTimeout: cfg.AIValidationTimeout,
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RedisAddress != "" {
		rdb, locker, err := config.ConnectRedis(ctx, cfg.RedisAddress)
		if err != nil {
			return deps, cleanup, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Sequencer = services.NewRedisSequencer(rdb, locker)
		deps.Locker = utils.NewRedisLocker(locker)
	}

	switch cfg.StorageProvider {
	case "gcs":
		store, err := utils.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentials, cfg.FileTokenTTL)
		if err != nil {
			return deps, cleanup, fmt.Errorf("connect storage: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Store = store
	default:
		store, err := utils.NewLocalStore(cfg.StorageLocalDir, cfg.PublicBaseURL, utils.NewFileTokens(cfg.FileTokenSecret, cfg.FileTokenTTL))
		if err != nil {
			return deps, cleanup, err
		}
		deps.Store = store
	}

	if cfg.AIValidationURL != "" {
		deps.Validator = services.NewHTTPValidator(cfg.AIValidationURL)
	} else {
		logger.Info("AI_VALIDATION_URL not set; using the simulated validator")
	}

	if cfg.PubSubProjectID != "" && cfg.PubSubTopic != "" {
		publisher, err := services.NewPubSubPublisher(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
		if err != nil {
			return deps, cleanup, fmt.Errorf("connect pubsub: %w", err)
		}
		closers = append(closers, func() { _ = publisher.Close() })
		deps.Dispatchers = append(deps.Dispatchers, publisher)
	}
	if cfg.TwilioAccountSID != "" && cfg.NotifySMSTo != "" {
		deps.Dispatchers = append(deps.Dispatchers,
			services.NewSMSNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.NotifySMSTo))
	}

	return deps, cleanup, nil
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
