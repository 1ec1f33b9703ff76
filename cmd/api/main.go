package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/eventradar/internal/config"
	"github.com/joshua-takyi/eventradar/internal/connect"
	"github.com/joshua-takyi/eventradar/internal/container"
	"github.com/joshua-takyi/eventradar/internal/database"
	"github.com/joshua-takyi/eventradar/internal/logging"
	"github.com/joshua-takyi/eventradar/internal/routes"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := logging.New(logging.Options{Level: "error"})
		bootLogger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Production: cfg.IsProduction(),
	})
	logger.Info("Starting eventradar API server", "environment", cfg.Server.Environment)

	// Cancel on interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	clients, err := connect.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect backing services", "error", err)
		os.Exit(1)
	}
	defer clients.Close()

	// Run migrations
	if err := database.Migrate(ctx, clients.DB); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Initialize dependency container
	appContainer, err := container.NewContainer(ctx, cfg, clients, logger)
	if err != nil {
		logger.Error("Failed to build application", "error", err)
		os.Exit(1)
	}
	defer appContainer.Close()

	// Setup routes
	router := routes.SetupRoutes(appContainer)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	logger.Info("Server is shutting down...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server exited")
}
