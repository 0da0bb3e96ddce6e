// The scheduler binary scans for due reminders on a fixed cadence and
// publishes reminder.due.v1 events. It also serves the cron binding so an
// external scheduler or operator can trigger a tick on demand.
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

	"github.com/taskfabric/taskfabric/internal/application/scheduler"
	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/config"
	"github.com/taskfabric/taskfabric/internal/directory"
	"github.com/taskfabric/taskfabric/internal/infrastructure/broker/redisstream"
	httpserver "github.com/taskfabric/taskfabric/internal/infrastructure/http"
	"github.com/taskfabric/taskfabric/internal/infrastructure/persistence/postgres"
	"github.com/taskfabric/taskfabric/internal/infrastructure/provider"
	"github.com/taskfabric/taskfabric/internal/publisher"
	"github.com/taskfabric/taskfabric/pkg/observability"
)

const serviceName = "taskfabric-scheduler"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadSchedulerConfig()
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

	var contacts directory.Resolver = directory.NewStatic(nil)
	if cfg.Scheduler.DirectoryEndpoint != "" {
		contacts = provider.NewHTTPDirectory(cfg.Scheduler.DirectoryEndpoint)
	}

	sched := scheduler.New(store, pub, contacts, clock.System{}, logger, cfg.Scheduler.BatchLimit)
	go sched.RunLoop(ctx, cfg.Scheduler.Cadence)

	server := httpserver.NewServer(httpserver.NewSchedulerRouter(sched), httpserver.ServerConfig{
		Port: cfg.Scheduler.HTTPPort,
	})

	errResult := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	slog.InfoContext(ctx, "scheduler started",
		"cadence", cfg.Scheduler.Cadence,
		"batch_limit", cfg.Scheduler.BatchLimit,
		"http_port", cfg.Scheduler.HTTPPort)

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown failed", "error", err)
		}
		return nil
	case err := <-errResult:
		return err
	}
}

// shutdownObservability flushes telemetry with a bounded context so exit
// never hangs on an unreachable collector.
func shutdownObservability(obs *observability.Providers) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown observability", "error", err)
	}
}
