package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/rrr-query-engine/internal/bootstrap"
	"github.com/kirillkom/rrr-query-engine/internal/config"
	"github.com/kirillkom/rrr-query-engine/internal/observability/logging"
	"github.com/kirillkom/rrr-query-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("rrr-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("rrr-worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:     metrics.NewQueryMetrics("rrr-worker", workerMetrics.Registerer()),
		Dependency:   metrics.NewDependencyMetrics("rrr-worker", workerMetrics.Registerer()),
		ServeLocal:   true,
		ConnectQueue: true,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()

	slog.Info("worker_subscribed", "subject", app.Queue.Subject())
	if err := app.Queue.Serve(ctx, app.QueryUC, workerMetrics); err != nil {
		slog.Error("worker_serve_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
