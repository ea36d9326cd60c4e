// Package cache stores exported schema documents in redis so repeated
// export requests do not re-run synthesis. The cache key is the runtime
// configuration checksum; a config change naturally misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiplanet/data-api-builder/logger"
)

// ErrSchemaNotCached is returned when no schema is stored for a checksum.
var ErrSchemaNotCached = errors.New("schema not found in cache")

// Client is the subset of redis commands the schema cache uses. The
// go-redis *redis.Client satisfies it.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedSchema is the redis envelope for one exported schema document.
type CachedSchema struct {
	SDL      string    `json:"sdl"`
	Checksum string    `json:"checksum"`
	CachedAt time.Time `json:"cached_at"`
}

// BuildSchemaCacheKey creates the redis key for a schema export.
func BuildSchemaCacheKey(serviceName, checksum string) string {
	return fmt.Sprintf("%s:schema:%s", serviceName, checksum)
}

// SetSchemaInCache stores an exported schema document.
func SetSchemaInCache(ctx context.Context, client Client, serviceName, checksum, sdl string, ttl time.Duration) error {
	if sdl == "" {
		return fmt.Errorf("schema document cannot be empty")
	}

	entry := CachedSchema{SDL: sdl, Checksum: checksum, CachedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal schema entry: %w", err)
	}

	key := BuildSchemaCacheKey(serviceName, checksum)
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache schema: %w", err)
	}
	return nil
}

// GetSchemaFromCache retrieves an exported schema document.
func GetSchemaFromCache(ctx context.Context, client Client, serviceName, checksum string) (*CachedSchema, error) {
	key := BuildSchemaCacheKey(serviceName, checksum)

	data, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrSchemaNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema from cache: %w", err)
	}

	var entry CachedSchema
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema entry: %w", err)
	}
	return &entry, nil
}

// InvalidateSchemaCache removes a cached schema export.
func InvalidateSchemaCache(ctx context.Context, client Client, serviceName, checksum string) error {
	key := BuildSchemaCacheKey(serviceName, checksum)
	return client.Del(ctx, key).Err()
}

// ResolveSchema returns the cached schema for a checksum when one exists,
// calling build and caching the result otherwise. With refresh the cached
// entry is dropped first so the document is always rebuilt. A nil client
// skips the cache entirely. The second return value reports a cache hit.
func ResolveSchema(ctx context.Context, client Client, serviceName, checksum string, refresh bool, ttl time.Duration, build func() (string, error)) (string, bool, error) {
	if client == nil {
		sdl, err := build()
		return sdl, false, err
	}

	if refresh {
		if err := InvalidateSchemaCache(ctx, client, serviceName, checksum); err != nil {
			logger.WithError(err).Warn("Failed to invalidate cached schema")
		}
	} else if entry, err := GetSchemaFromCache(ctx, client, serviceName, checksum); err == nil {
		return entry.SDL, true, nil
	} else if !errors.Is(err, ErrSchemaNotCached) {
		logger.WithError(err).Warn("Schema cache lookup failed")
	}

	sdl, err := build()
	if err != nil {
		return "", false, err
	}
	if err := SetSchemaInCache(ctx, client, serviceName, checksum, sdl, ttl); err != nil {
		logger.WithError(err).Warn("Failed to cache exported schema")
	}
	return sdl, false, nil
}
