package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the data API server",
	Long: `Start the HTTP server exposing the configured entities over REST and
GraphQL. The runtime configuration is loaded once at startup; relational
sources are introspected and the GraphQL schema is synthesized before the
server begins accepting requests.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed:\n%v", err)
	}
	if err := initLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.WithFields(map[string]interface{}{
		"service":   cfg.App.Name,
		"log_level": cfg.Logging.Level,
	}).Info("Starting data API builder")

	ctx := context.Background()
	deps, err := server.InitializeDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize dependencies")
	}

	srv := server.InitializeServer(cfg, deps)
	lifecycle := server.NewLifecycle(deps, srv)
	setupGracefulShutdown(lifecycle)

	if err := srv.StartServer(); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
	return nil
}

func setupGracefulShutdown(lifecycle *server.Lifecycle) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Shutdown signal received...")

		if err := lifecycle.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Failed during graceful shutdown")
		}

		os.Exit(0)
	}()
}
