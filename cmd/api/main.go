package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/rrr-query-engine/internal/adapters/http"
	"github.com/kirillkom/rrr-query-engine/internal/bootstrap"
	"github.com/kirillkom/rrr-query-engine/internal/config"
	"github.com/kirillkom/rrr-query-engine/internal/observability/logging"
	"github.com/kirillkom/rrr-query-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("rrr-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("rrr-api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		RequestID:  httpadapter.RequestIDFromContext,
		Observer:   metrics.NewQueryMetrics("rrr-api", httpMetrics.Registerer()),
		Dependency: metrics.NewDependencyMetrics("rrr-api", httpMetrics.Registerer()),
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	handler, err := httpadapter.NewRouter(cfg, app.QueryUC, app.CategoryUC, httpMetrics).Handler()
	if err != nil {
		slog.Error("router_init_failed", "error", err)
		os.Exit(1)
	}
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "dispatch", cfg.Dispatch)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
