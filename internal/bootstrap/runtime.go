// Package bootstrap opens the process-wide dependencies shared by the commands.
package bootstrap

import (
	"fmt"

	"breaksphere/internal/cache"
	"breaksphere/internal/config"
	"breaksphere/internal/database"
	"breaksphere/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ServiceName is reported to the tracer and the health endpoints.
const ServiceName = "breaksphere-api"

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema connects without applying migrations (cmd/migrate decides itself).
	SkipSchema bool
	// SkipRedis leaves the cache disabled, for one-shot commands.
	SkipRedis bool
}

// InitRuntime connects to the database and, unless skipped, Redis.
// A nil Redis client is a valid result: Redis is optional.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.SkipRedis {
		cache.SetClient(nil)
		return db, nil, nil
	}

	cache.InitRedis(cfg.RedisURL)
	return db, cache.GetClient(), nil
}

// TracingConfig maps application config onto the tracer settings.
func TracingConfig(cfg *config.Config, version string) observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	}
}
