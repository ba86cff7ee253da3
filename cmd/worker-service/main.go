package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/expensio/expensio-be/internal/config"
	"github.com/expensio/expensio-be/internal/export"
	"github.com/expensio/expensio-be/internal/matching"
	"github.com/expensio/expensio-be/internal/metrics"
	"github.com/expensio/expensio-be/internal/worker"
	"github.com/expensio/expensio-be/internal/worker/domain"
	workerstorage "github.com/expensio/expensio-be/internal/worker/storage"
	"github.com/expensio/expensio-be/shared/logger"
	"github.com/expensio/expensio-be/shared/objectstore"
	"github.com/expensio/expensio-be/shared/postgresql"
	"github.com/expensio/expensio-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	objects, err := initObjectStore(ctx, &cfg.ObjectStore, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	// The notification channel is optional; without it the scheduler still
	// finds every job on its next tick.
	var notifications <-chan struct{}
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		notifications, err = startNotificationBridge(ctx, rabbitClient, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to consume job notifications: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	sink := metrics.NewPrometheusSink(registry, appLogger.Logger)
	metricsServer := startMetricsServer(cfg.Worker.MetricsPort, registry, appLogger.Logger)

	store := workerstorage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	rules := matching.Rules{
		DateWindowDays:       cfg.Matching.DateWindowDays,
		AmountTolerance:      cfg.Matching.AmountTolerance,
		RequireCategoryMatch: cfg.Matching.RequireCategoryMatch,
	}

	batchCheck := worker.NewBatchCheck(store, rules, appLogger.Logger)
	exportBuilder := export.NewBuilder(store, objects, sink, appLogger.Logger, export.Config{
		LinkTTL:       cfg.Export.LinkTTL,
		MaxImageWidth: cfg.Export.MaxImageWidth,
		JPEGQuality:   cfg.Export.JPEGQuality,
		DefaultTemplate: domain.ExportTemplate{
			SortDescending:    cfg.Export.DefaultTemplate.SortDescending,
			IncludeMerchant:   cfg.Export.DefaultTemplate.IncludeMerchant,
			IncludeExpenseID:  cfg.Export.DefaultTemplate.IncludeExpenseID,
			IncludeReceiptIDs: cfg.Export.DefaultTemplate.IncludeReceiptIDs,
			IncludePDFIndex:   cfg.Export.DefaultTemplate.IncludePDFIndex,
		},
	})
	executor := worker.NewExecutor(batchCheck, exportBuilder, appLogger.Logger)

	scheduler := worker.NewScheduler(worker.Config{
		PollInterval:  cfg.Worker.PollInterval,
		MaxAttempts:   cfg.Worker.MaxAttempts,
		RetryBackoff:  cfg.Worker.RetryBackoff,
		JobTimeout:    cfg.Worker.JobTimeout,
		Notifications: notifications,
	}, store, executor, sink, appLogger.Logger)

	errChan := make(chan error, 1)
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Scheduler error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownTimeout := cfg.Worker.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Metrics server shutdown failed",
				slog.Any("error", err),
			)
		}
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		TimeFormat: time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initObjectStore selects the receipt/artifact storage backend
func initObjectStore(ctx context.Context, cfg *config.ObjectStoreConfig, logger *slog.Logger) (objectstore.Store, error) {
	switch cfg.Backend {
	case "s3":
		return objectstore.NewMinioStore(ctx, &objectstore.MinioConfig{
			Endpoint:      cfg.Endpoint,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Bucket:        cfg.Bucket,
			UseSSL:        cfg.UseSSL,
			PublicBaseURL: cfg.PublicBaseURL,
		}, logger)
	default:
		return objectstore.NewFSStore(cfg.BasePath, cfg.PublicBaseURL, logger)
	}
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		ExchangeName:      cfg.Exchange,
		QueueName:         cfg.Queue,
		RoutingKey:        cfg.RoutingKey,
		RetryAttempts:     cfg.Connection.RetryAttempts,
		RetryInterval:     cfg.Connection.RetryInterval,
		Heartbeat:         cfg.Connection.Heartbeat,
		ConnectionTimeout: cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// startNotificationBridge converts broker deliveries into wake-up signals
// for the scheduler. The channel has capacity one; a burst of messages while
// a signal is already pending collapses into a single early claim, which is
// all the poll loop needs.
func startNotificationBridge(ctx context.Context, client *rabbitmq.Client, logger *slog.Logger) (<-chan struct{}, error) {
	deliveries, err := client.Consume("worker-service")
	if err != nil {
		return nil, err
	}

	notifications := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-deliveries:
				if !ok {
					logger.Warn("Job notification channel closed, relying on polling only")
					return
				}
				select {
				case notifications <- struct{}{}:
				default:
				}
			}
		}
	}()

	return notifications, nil
}

// startMetricsServer exposes /metrics. Port 0 disables the endpoint.
func startMetricsServer(port int, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	if port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Metrics server listening", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	return server
}
