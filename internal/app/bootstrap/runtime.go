package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/erdincayar/klinik-asistan-sub000/internal/clinic"
	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildClinicStore returns the clinic config store when Redis is available.
func BuildClinicStore(redisClient *redis.Client) *clinic.Store {
	if redisClient == nil {
		return nil
	}
	return clinic.NewStore(redisClient)
}

// Database bundles the pgx pool used by the repositories with a
// database/sql handle over the same pool for the audit trail.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Close releases both handles.
func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// BuildDatabase connects to Postgres. It returns nil, nil when no
// DATABASE_URL is configured so callers fall back to in-memory stores.
func BuildDatabase(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Database, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return &Database{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}
