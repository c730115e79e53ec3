package cache

import (
	"context"

	"event-sync/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

// NewCache connects to Redis, which backs the per-event sync locks.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("redis ping failed")
		return client, err
	}
	return client, nil
}
