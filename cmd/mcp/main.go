package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/grounded-policy-assistant/internal/adapters/mcp"
	"github.com/kirillkom/grounded-policy-assistant/internal/bootstrap"
	"github.com/kirillkom/grounded-policy-assistant/internal/config"
	"github.com/kirillkom/grounded-policy-assistant/internal/observability/logging"
)

const serviceName = "mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpserver.NewMCPServer(
		"Grounded Policy Assistant",
		"1.0.0",
	)
	mcpadapter.RegisterTools(server, app.AskUC, app.StatusUC)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("mcp server error", "error", err)
			os.Exit(1)
		}
	}
}
