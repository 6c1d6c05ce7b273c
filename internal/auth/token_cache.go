package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RevokedTokenPrefix namespaces blacklisted refresh token ids in Redis.
const RevokedTokenPrefix = "revoked_token:"

// RedisTokenCache stores revoked refresh token ids with the token's
// remaining lifetime as TTL, so entries vanish once the token would have
// expired anyway.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

func (c *RedisTokenCache) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := c.Client.Set(ctx, RevokedTokenPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revoked token in Redis: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if c.Client == nil {
		return false, fmt.Errorf("redis client not initialized")
	}
	n, err := c.Client.Exists(ctx, RevokedTokenPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read revoked token from Redis: %w", err)
	}
	return n > 0, nil
}
