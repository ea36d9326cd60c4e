package server

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiplanet/data-api-builder/apierror"
	"github.com/weiplanet/data-api-builder/authorization"
	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/engine"
	"github.com/weiplanet/data-api-builder/graphql"
	"github.com/weiplanet/data-api-builder/introspection"
	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/metadata"
)

// Deps groups runtime dependencies initialized at startup.
type Deps struct {
	Runtime      *config.RuntimeConfig
	Store        *metadata.Store
	Resolver     *authorization.Resolver
	Introspector *introspection.Introspector
	Executor     *engine.SQLExecutor
	Redis        *redis.Client
	SDL          string
}

// InitializeDependencies loads the runtime configuration, builds the API
// surface and connects Redis when configured. A failure at any stage aborts
// startup; serving a partial API surface would silently hide entities.
func InitializeDependencies(ctx context.Context, cfg *config.Config) (*Deps, error) {
	runtime, err := config.LoadRuntimeConfig(cfg.RuntimeConfigPath)
	if err != nil {
		logger.WithError(err).Error("Failed to load runtime configuration")
		return nil, err
	}

	deps, err := BuildSurface(ctx, runtime)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled() {
		deps.Redis, err = ConnectRedis(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize Redis")
			if deps.Introspector != nil {
				if cerr := deps.Introspector.Close(); cerr != nil {
					logger.WithError(cerr).Error("Failed to close database during cleanup")
				}
			}
			return nil, err
		}
	}

	return deps, nil
}

// BuildSurface introspects the configured database and synthesizes the
// GraphQL schema for an already-loaded runtime configuration.
func BuildSurface(ctx context.Context, runtime *config.RuntimeConfig) (*Deps, error) {
	var (
		intr *introspection.Introspector
		err  error
	)

	// Ensure resources are cleaned up on error
	defer func() {
		if err != nil && intr != nil {
			if cerr := intr.Close(); cerr != nil {
				logger.WithError(cerr).Error("Failed to close database during cleanup")
			}
		}
	}()

	store, err := metadata.NewStore(runtime)
	if err != nil {
		logger.WithError(err).Error("Failed to build metadata store")
		return nil, err
	}

	resolver := authorization.NewResolver(runtime)

	var executor *engine.SQLExecutor
	dialect := runtime.DataSource.DatabaseType
	if dialect.IsRelational() {
		connString := runtime.DataSource.ConnectionString()
		if connString == "" {
			err = apierror.NewInitError("connection string environment variable %q is empty", runtime.DataSource.ConnectionStringEnv)
			return nil, err
		}

		intr, err = introspection.Open(dialect, connString)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to database")
			return nil, err
		}

		if err = intr.Populate(ctx, store); err != nil {
			logger.WithError(err).Error("Database introspection failed")
			return nil, err
		}

		executor, err = engine.NewSQLExecutor(intr.DB(), dialect)
		if err != nil {
			return nil, err
		}
	}

	synthesizer := graphql.NewSynthesizer(dialect, store, resolver)
	base := graphql.BaseSchemaFromMetadata(store)
	fragment, err := synthesizer.Synthesize(base)
	if err != nil {
		logger.WithError(err).Error("Schema synthesis failed")
		return nil, err
	}
	sdl := graphql.PrintSDL(graphql.AssembleDocument(base, fragment))

	logger.WithFields(map[string]interface{}{
		"entities": len(store.Entities()),
		"dialect":  string(dialect),
	}).Info("Schema synthesized")

	return &Deps{
		Runtime:      runtime,
		Store:        store,
		Resolver:     resolver,
		Introspector: intr,
		Executor:     executor,
		SDL:          sdl,
	}, nil
}

// ConnectRedis opens and pings a redis connection from the environment config.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.WithField("addr", cfg.Redis.Address()).Info("Redis connection established")
	return client, nil
}
