// Command server runs the BreakSphere feed API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"breaksphere/internal/bootstrap"
	"breaksphere/internal/config"
	"breaksphere/internal/middleware"
	"breaksphere/internal/observability"
	"breaksphere/internal/server"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.SetLogger(middleware.ConfigureLogger(cfg.Env, cfg.LogLevel))

	shutdownTracing, err := observability.InitTracing(bootstrap.TracingConfig(cfg, version))
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		middleware.Logger.Info("Shutting down server...", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			middleware.Logger.Error("Server stopped", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		middleware.Logger.Error("Server shutdown error", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		middleware.Logger.Error("Tracer shutdown error", "error", err)
	}
}
