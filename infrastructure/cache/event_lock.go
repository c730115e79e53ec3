package cache

import (
	"context"
	"fmt"
	"time"

	"event-sync/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

// EventLock provides the named per-event lock that keeps two workers from
// racing on the same event's sync state. It is a plain SET NX with a TTL; the
// TTL covers a hung run, the explicit release covers the normal path.
type EventLock struct {
	client *redis.Client
}

func NewEventLock(client *redis.Client) *EventLock {
	return &EventLock{client: client}
}

func (l *EventLock) TryLock(ctx context.Context, eventID int64, ttl time.Duration) (func(), bool, error) {
	key := fmt.Sprintf("event-sync:lock:%d", eventID)
	ok, err := l.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("event lock %d: %w", eventID, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			logger.GetLogger().WithField("key", key).WithField("error", err).Warn("event lock release failed")
		}
	}
	return release, true, nil
}
