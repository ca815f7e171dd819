package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application/services"
	"github.com/DanielPopoola/ficmart-payment-service/internal/config"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/cache"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/messaging"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/observability"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/ficmart-payment-service/internal/infrastructure/processor"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest"
	"github.com/DanielPopoola/ficmart-payment-service/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/ficmart-payment-service/internal/worker"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment service",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"bus", cfg.Bus.Driver,
		"log_level", cfg.Logger.Level,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("payment service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	observability.InstallPropagator()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	rdb, err := cache.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	publisher, closePublisher, err := messaging.NewPublisher(ctx, cfg.Bus, logger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer closePublisher()

	subscriber, closeSubscriber, err := messaging.NewSubscriber(ctx, cfg.Bus, worker.ProjectedTopics, logger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	defer closeSubscriber()

	orderRepo := postgres.NewOrderRepository(db)
	attemptRepo := postgres.NewAttemptRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	processorClient := processor.NewProcessorClient(cfg.Processor)
	retryProcessorClient := processor.NewRetryProcessorClient(processorClient, cfg.Retry)

	lookup := services.NewOrderLookup(orderRepo)
	// The request path makes a single processor call; retries belong to the reconciler.
	initiator := services.NewChargeInitiator(processorClient, cfg.Processor.ChargeTimeout, logger)
	recorder := services.NewPaymentRecorder(paymentRepo, cfg.Workflow.RelayGrace, logger)
	announcer := services.NewEventAnnouncer(publisher, outboxRepo,
		cfg.Workflow.PublishBackoff, cfg.Worker.OutboxMaxRetries, metrics, logger)

	workflow := services.NewPaymentWorkflow(
		lookup,
		initiator,
		recorder,
		announcer,
		attemptRepo,
		paymentRepo,
		cache.NewOrderLock(rdb),
		metrics,
		cfg.Workflow.OrderLockTTL,
		logger,
	)

	doc, err := rest.LoadOpenAPI(ctx)
	if err != nil {
		return err
	}

	h := handlers.NewHandlers(workflow, map[string]handlers.Pinger{
		"postgres": db,
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	}, logger)

	router, err := handlers.NewRouter(h, handlers.RouterConfig{
		Doc:            doc,
		Metrics:        metrics,
		Gatherer:       registry,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	hostname, _ := os.Hostname()
	relay := worker.NewOutboxRelay(
		outboxRepo,
		announcer,
		fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Worker.OutboxLease,
		cfg.Worker.OutboxMaxRetries,
		logger,
	)

	reconciler := worker.NewReconciler(
		attemptRepo,
		retryProcessorClient,
		recorder,
		announcer,
		cfg.Worker.Interval,
		cfg.Worker.ReconcileGrace,
		cfg.Worker.MaxReconcileTries,
		cfg.Worker.BatchSize,
		metrics,
		logger,
	)

	projector := worker.NewOrderProjector(
		subscriber,
		services.NewOrderProjection(orderRepo, cfg.Workflow.Currency, logger),
		cache.NewDedupe(rdb, cfg.Redis.DedupTTL),
		metrics,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		relay.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		reconciler.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		if err := projector.Start(workerCtx); err != nil {
			logger.Error("order projector stopped", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serverErr:
		logger.Error("server error", "error", runErr)
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancelWorkers()
	wg.Wait()

	return runErr
}
