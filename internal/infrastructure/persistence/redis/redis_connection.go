// Package redis provides the Redis key store and its connection management.
// It supports standalone, cluster, and sentinel deployment modes with connection pooling.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// ConnectionMode defines Redis deployment mode
type ConnectionMode string

const (
	// ModeStandalone represents single Redis instance
	ModeStandalone ConnectionMode = "standalone"
	// ModeCluster represents Redis cluster mode
	ModeCluster ConnectionMode = "cluster"
	// ModeSentinel represents Redis sentinel mode for high availability
	ModeSentinel ConnectionMode = "sentinel"
)

// RedisConnection owns a redis.UniversalClient built from RedisConfig.
type RedisConnection struct {
	cfg    config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection builds the client for the configured mode and verifies it with PING.
//
// Parameters:
//   - ctx: Context bounding the initial ping
//   - cfg: Redis configuration
//   - log: Logger instance
//
// Returns:
//   - *RedisConnection: Connected manager
//   - error: invalid_argument for a bad mode, store_unavailable when unreachable
func NewRedisConnection(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*RedisConnection, error) {
	log = log.WithComponent("redis")
	cfg = withDefaults(cfg)

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	rc := &RedisConnection{cfg: cfg, client: client, logger: log}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info(ctx, "Redis connection established successfully",
		logger.String("mode", cfg.Mode),
		logger.Any("addrs", cfg.Addresses),
		logger.Int("pool_size", cfg.PoolSize),
	)
	return rc, nil
}

// NewRedisConnectionFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewRedisConnectionFromClient(client redis.UniversalClient, log logger.Logger) *RedisConnection {
	return &RedisConnection{cfg: withDefaults(config.RedisConfig{}), client: client, logger: log.WithComponent("redis")}
}

func newClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	switch ConnectionMode(cfg.Mode) {
	case ModeStandalone:
		return redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
		}), nil
	case ModeCluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
		}), nil
	case ModeSentinel:
		if cfg.MasterName == "" {
			return nil, errors.InvalidArgument("sentinel master name not configured")
		}
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.Addresses,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
			MinIdleConns:  cfg.MinIdleConns,
			DialTimeout:   cfg.DialTimeout,
		}), nil
	default:
		return nil, errors.InvalidArgument(fmt.Sprintf("unsupported redis mode: %s", cfg.Mode))
	}
}

func withDefaults(cfg config.RedisConfig) config.RedisConfig {
	if cfg.Mode == "" {
		cfg.Mode = string(ModeStandalone)
	}
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{"localhost:6379"}
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "clusterkeys"
	}
	return cfg
}

// Client returns the Redis client instance.
func (rc *RedisConnection) Client() redis.UniversalClient {
	return rc.client
}

// KeyPrefix returns the namespace prefix for every key this service writes.
func (rc *RedisConnection) KeyPrefix() string {
	return rc.cfg.KeyPrefix
}

// Ping checks Redis server connectivity.
func (rc *RedisConnection) Ping(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.logger.Error(ctx, "Redis ping failed", err)
		return errors.Wrap(err, errors.CodeStoreUnavailable, "redis ping failed")
	}
	return nil
}

// HealthCheck performs comprehensive health check on Redis connection.
//
// Returns:
//   - map[string]interface{}: Health status details
//   - error: Health check error if any
func (rc *RedisConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	start := time.Now()
	err := rc.client.Ping(ctx).Err()
	health := map[string]interface{}{
		"connected":  err == nil,
		"latency_ms": time.Since(start).Milliseconds(),
		"mode":       rc.cfg.Mode,
	}
	if err != nil {
		return health, errors.Wrap(err, errors.CodeStoreUnavailable, "redis health check failed")
	}

	stats := rc.client.PoolStats()
	health["total_conns"] = stats.TotalConns
	health["idle_conns"] = stats.IdleConns
	health["hits"] = stats.Hits
	health["misses"] = stats.Misses
	return health, nil
}

// Close closes the Redis connection gracefully.
func (rc *RedisConnection) Close() error {
	rc.logger.Info(context.Background(), "Closing Redis connection")
	return rc.client.Close()
}

//Personal.AI order the ending
