package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/Mohhit1230/Chat-App/internal/core/port"
)

const defaultRevocationPrefix = "chat:revoked"

// RevocationRepository stores token revocation markers in Redis with native key expiry.
type RevocationRepository struct {
	client *red.Client
	prefix string
}

// NewRevocationRepository wires a Redis client into a revocation repository.
func NewRevocationRepository(client *red.Client, keyPrefix string) *RevocationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &RevocationRepository{client: client, prefix: prefix}
}

// Put marks the token key as revoked for ttl. Re-putting refreshes the expiry.
// Non-positive TTLs and blank keys are ignored.
func (r *RevocationRepository) Put(ctx context.Context, key string, ttl time.Duration) error {
	redisKey := r.key(key)
	if redisKey == "" || ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, redisKey, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token key currently exists.
func (r *RevocationRepository) IsRevoked(ctx context.Context, key string) (bool, error) {
	redisKey := r.key(key)
	if redisKey == "" {
		return false, nil
	}

	count, err := r.client.Exists(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked token: %w", err)
	}
	return count > 0, nil
}

// Delete removes the token key; absent keys are a no-op.
func (r *RevocationRepository) Delete(ctx context.Context, key string) error {
	redisKey := r.key(key)
	if redisKey == "" {
		return nil
	}

	if err := r.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("redis del revoked token: %w", err)
	}
	return nil
}

// HealthCheck performs a ping to verify Redis connectivity.
func (r *RevocationRepository) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RevocationRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func (r *RevocationRepository) key(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.RemoteRevocationBackend = (*RevocationRepository)(nil)
