package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"train-station/internal/logger"
)

// InitializeRedis connects to Redis and checks the connection. The client is
// shared by the token blacklist and the seat holds.
func InitializeRedis(ctx context.Context, redisAddr string, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		redisClient.Close()
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
		return nil, err
	}

	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", redisAddr, redisClient.Options().DB))
	return redisClient, nil
}
