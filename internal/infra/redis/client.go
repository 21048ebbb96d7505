package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/Mohhit1230/Chat-App/internal/infra/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ClientOptions bounds how long a single Redis call may block.
type ClientOptions struct {
	OperationTimeout time.Duration
}

// NewClient dials Redis and verifies connectivity with a ping bounded by ctx.
func NewClient(ctx context.Context, cfg config.RedisSettings, opts ClientOptions, logger *zap.Logger) (*redis.Client, error) {
	opTimeout := opts.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}

	options := &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,

		// Connection pool settings
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,

		// Timeouts
		DialTimeout:  dialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,

		PoolTimeout:     opTimeout,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	if cfg.TLSEnabled {
		options.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Redis connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("db", cfg.DB),
		zap.Bool("tls_enabled", cfg.TLSEnabled),
	)

	return client, nil
}
