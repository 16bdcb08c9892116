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

	"affiliate-marketplace/internal/api"
	"affiliate-marketplace/internal/authz"
	"affiliate-marketplace/internal/common/auth"
	appaws "affiliate-marketplace/internal/common/aws"
	"affiliate-marketplace/internal/common/camunda"
	"affiliate-marketplace/internal/common/config"
	"affiliate-marketplace/internal/common/database"
	apphttp "affiliate-marketplace/internal/common/http"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/common/observability"
	"affiliate-marketplace/internal/errtrack"
	"affiliate-marketplace/internal/marketplace"
	"affiliate-marketplace/internal/migrations"
	"affiliate-marketplace/internal/notifier"
	"affiliate-marketplace/internal/repository"
	"affiliate-marketplace/internal/search"
	reviewlisting "affiliate-marketplace/internal/workers/listing/review-listing"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg))
		},
	}
}

// serve blocks until ctx is cancelled, then drains the server, the job
// worker and the notification queue in that order.
func serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	log.Info("starting marketplace", map[string]interface{}{
		"environment": cfg.App.Environment,
		"address":     cfg.Server.Address,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()
	if cfg.Tracing.Enabled {
		if err := obs.EnableTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint); err != nil {
			log.Warn("tracing disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(ctx, cfg.Database.Postgres, 5*time.Second)
		return err
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer closeQuietly(log, pg.Name(), pg.Close)
	log.Info("PostgreSQL connected", nil)

	if cfg.Database.Postgres.AutoMigrate {
		if err := migrations.NewRunner(pg.DB, log).Up(); err != nil {
			return err
		}
	}

	probes := []api.Probe{pg}
	reporter, failureLog, rdb := failureTracking(ctx, cfg.Database.Redis, cfg.Notifications.FailureLogSize, 10, log)
	if rdb != nil {
		defer closeQuietly(log, rdb.Name(), rdb.Close)
		probes = append(probes, rdb)
	}

	subscribers, err := notificationSubscribers(ctx, cfg, log)
	if err != nil {
		return err
	}

	var searcher marketplace.ListingSearcher
	if cfg.Search.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		indexer := search.NewIndexer(es.Client, cfg.Search.Index, log)
		if err := indexer.EnsureIndex(ctx); err != nil {
			return err
		}
		subscribers = append(subscribers, indexer)
		searcher = indexer
		probes = append(probes, es)
		log.Info("Elasticsearch search enabled", map[string]interface{}{"index": cfg.Search.Index})
	}

	dispatcher := notifier.NewDispatcher(notifier.DispatcherConfig{
		Workers: cfg.Notifications.DispatchWorkers,
		Buffer:  cfg.Notifications.DispatchBuffer,
		Timeout: config.GetDuration(cfg.Notifications.Timeout),
	}, reporter, log, subscribers...)
	dispatcher.Start()

	service := marketplace.NewService(marketplace.Deps{
		Listings:  repository.NewListingRepository(pg.DB),
		Favorites: repository.NewFavoriteRepository(pg.DB),
		Waitlist:  repository.NewWaitlistRepository(pg.DB),
		Publisher: dispatcher,
		Searcher:  searcher,
		Failures:  failureLog,
		Obs:       obs,
	}, log)
	validator := marketplace.NewValidator(log)
	policy := authz.NewPolicy(cfg.Auth.AdminEmailSuffixes)

	var reviewWorker *camunda.Worker
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClient(ctx, cfg.Camunda, log)
		if err != nil {
			return err
		}
		defer closeQuietly(log, zeebe.Name(), zeebe.Close)
		probes = append(probes, zeebe)

		wcfg := config.GetWorkerConfig(cfg, reviewlisting.TaskType)
		handler := reviewlisting.NewHandler(
			&reviewlisting.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			service, validator, policy, log,
		)
		reviewWorker = camunda.StartWorker(zeebe.GetClient(), reviewlisting.TaskType, wcfg, handler.Handle, log)
	}

	handler := api.NewHandler(service, validator, newResolver(cfg), policy, log, probes...)
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	reviewWorker.Stop()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("notification queue not drained", map[string]interface{}{"error": err.Error()})
	}

	log.Info("marketplace stopped", nil)
	return nil
}

// failureTracking picks where notification failures go. With a reachable
// Redis they are kept in a capped list the admin API can read; otherwise
// they are only logged and the admin report stays empty.
func failureTracking(ctx context.Context, cfg config.RedisConfig, size int64, attempts int, log logger.Logger) (errtrack.Reporter, marketplace.FailureLog, *database.RedisClient) {
	if cfg.Address == "" {
		log.Warn("Redis not configured, notification failures are only logged", nil)
		return errtrack.NewLogReporter(log), nil, nil
	}

	rdb := database.NewRedis(cfg)
	err := retryWithBackoff(ctx, func() error {
		return rdb.Ping(ctx)
	}, attempts, 2*time.Second, log, "Redis connection")
	if err != nil {
		log.Warn("Redis unreachable, notification failures are only logged", map[string]interface{}{
			"error": err.Error(),
		})
		closeQuietly(log, rdb.Name(), rdb.Close)
		return errtrack.NewLogReporter(log), nil, nil
	}

	log.Info("Redis connected", nil)
	reporter := errtrack.NewRedisReporter(rdb.Client, size, log)
	return reporter, reporter, rdb
}

// notificationSubscribers builds the delivery channels enabled in config.
// The email notifier is always registered; when no provider is configured
// it skips every delivery with an info log and a "skipped" count.
func notificationSubscribers(ctx context.Context, cfg *config.Config, log logger.Logger) ([]notifier.Subscriber, error) {
	awsCfg := cfg.Integrations.AWS

	var clients *appaws.Clients
	if awsCfg.SES.Enabled || awsCfg.SNS.Enabled {
		var err error
		clients, err = appaws.NewClients(ctx, awsCfg.Region)
		if err != nil {
			return nil, err
		}
	}

	var ses notifier.SESService
	if awsCfg.SES.Enabled {
		ses = clients.SES
	}
	subscribers := []notifier.Subscriber{
		notifier.NewEmailNotifier(notifier.EmailConfig{
			Enabled:       awsCfg.SES.Enabled,
			FromEmail:     awsCfg.SES.FromEmail,
			OperatorEmail: cfg.Notifications.OperatorEmail,
		}, ses, log),
	}

	if awsCfg.SNS.Enabled {
		subscribers = append(subscribers, notifier.NewSNSPublisher(clients.SNS, awsCfg.SNS.TopicARN, log))
	}
	return subscribers, nil
}

func newResolver(cfg *config.Config) auth.Resolver {
	if cfg.Auth.Mode == "header" {
		return auth.HeaderResolver{}
	}
	return auth.NewKeycloakResolver(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		apphttp.NewClient(config.GetDuration(cfg.Auth.Keycloak.Timeout)),
	)
}

// retryWithBackoff retries operation with exponential backoff until it
// succeeds, maxRetries is reached or ctx is cancelled.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			}
			delay *= 2
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
