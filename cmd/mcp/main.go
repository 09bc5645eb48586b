package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/rrr-query-engine/internal/adapters/mcp"
	"github.com/kirillkom/rrr-query-engine/internal/bootstrap"
	"github.com/kirillkom/rrr-query-engine/internal/config"
	"github.com/kirillkom/rrr-query-engine/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "rrr-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(app.QueryUC, app.CategoryUC)
	slog.Info("mcp_stdio_serving", "server", mcpadapter.ServerName)
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp_serve_failed", "error", err)
	}
}
