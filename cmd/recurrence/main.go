// The recurrence binary consumes task.completed.v1 events and creates the
// next occurrence of recurring tasks, de-duplicating redeliveries through
// the idempotency ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskfabric/taskfabric/internal/application/recurrence"
	"github.com/taskfabric/taskfabric/internal/application/task"
	"github.com/taskfabric/taskfabric/internal/application/worker"
	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/infrastructure/broker/redisstream"
	httpserver "github.com/taskfabric/taskfabric/internal/infrastructure/http"
	"github.com/taskfabric/taskfabric/internal/infrastructure/persistence/postgres"
	"github.com/taskfabric/taskfabric/internal/publisher"
	"github.com/taskfabric/taskfabric/pkg/observability"
)

const serviceName = "taskfabric-recurrence"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadRecurrenceConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obs, err := observability.Init(ctx, serviceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer shutdownObservability(obs)
	slog.SetDefault(obs.Logger)
	logger := obs.Logger

	store, err := postgres.NewStoreFromConfig(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	redisClient, err := redisstream.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	bus := redisstream.New(redisClient, cfg.Redis, logger)

	pub := publisher.New(bus, clock.System{}, cfg.Publisher, logger)
	go pub.RunFlushLoop(ctx)

	tasks := task.NewService(store, pub, clock.System{}, logger)
	engine := recurrence.NewEngine(tasks, store, logger)
	consumer := worker.NewConsumer(bus, store, engine, cfg.Ledger.TTL(), logger)

	go worker.RunPurgeLoop(ctx, store, cfg.Ledger.PurgeInterval, logger)

	server := httpserver.NewServer(httpserver.NewHealthRouter(), httpserver.ServerConfig{
		Port: cfg.HTTPPort,
	})
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "health server failed", "error", err)
		}
	}()

	errResult := make(chan error, 1)
	go func() {
		errResult <- consumer.Run(ctx)
	}()

	slog.InfoContext(ctx, "recurrence engine started", "http_port", cfg.HTTPPort)

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
	case err := <-errResult:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consumer stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.WarnContext(shutdownCtx, "HTTP server shutdown failed", "error", err)
	}
	return nil
}

func shutdownObservability(obs *observability.Providers) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown observability", "error", err)
	}
}
