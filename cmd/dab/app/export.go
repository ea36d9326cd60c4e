package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiplanet/data-api-builder/cache"
	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/server"
)

var exportSchemaCmd = &cobra.Command{
	Use:   "export-schema",
	Short: "Synthesize and print the GraphQL schema",
	Long: `Synthesize the GraphQL schema from the runtime configuration and print
it as SDL. When Redis is configured the document is cached under the
configuration checksum, and a later export with an unchanged configuration
is served from the cache without touching the database. Use --refresh to
drop the cached entry and rebuild.`,
	RunE: runExportSchema,
}

func init() {
	exportSchemaCmd.Flags().String("out", "", "Write the schema to a file instead of stdout")
	exportSchemaCmd.Flags().Bool("refresh", false, "Drop the cached schema and rebuild it")
}

func runExportSchema(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := initLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	runtime, err := config.LoadRuntimeConfig(cfg.RuntimeConfigPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load runtime configuration")
	}
	checksum := runtime.Checksum()

	// The checksum needs only the configuration, so a cache hit skips the
	// database connection entirely.
	var client cache.Client
	if cfg.Redis.Enabled() {
		redisClient, err := server.ConnectRedis(ctx, cfg)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, exporting without cache")
		} else {
			defer func() { _ = redisClient.Close() }()
			client = redisClient
		}
	}

	refresh, _ := cmd.Flags().GetBool("refresh")
	ttl := time.Duration(cfg.Redis.SchemaTTL) * time.Minute
	sdl, fromCache, err := cache.ResolveSchema(ctx, client, cfg.App.Name, checksum, refresh, ttl, func() (string, error) {
		deps, err := server.BuildSurface(ctx, runtime)
		if err != nil {
			return "", err
		}
		if deps.Introspector != nil {
			defer func() { _ = deps.Introspector.Close() }()
		}
		return deps.SDL, nil
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to synthesize schema")
	}
	if fromCache {
		logger.WithField("checksum", checksum).Info("Schema served from cache")
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := os.WriteFile(out, []byte(sdl), 0o644); err != nil {
			return fmt.Errorf("failed to write schema to %s: %w", out, err)
		}
		logger.WithField("path", out).Info("Schema exported")
		return nil
	}

	fmt.Println(sdl)
	return nil
}
