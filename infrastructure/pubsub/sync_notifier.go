package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"event-sync/domain/model"
	"event-sync/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// NewPubSub creates the Pub/Sub client; nil-safe consumers tolerate failure.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID)
}

// SyncNotifier publishes a message per completed worker run so downstream
// consumers (notifications, reporting) can react without polling the events
// table. Publishing is best-effort.
type SyncNotifier struct {
	client *pubsub.Client
	topic  string
}

func NewSyncNotifier(client *pubsub.Client, topic string) *SyncNotifier {
	if topic == "" {
		topic = "event-sync.completed"
	}
	return &SyncNotifier{client: client, topic: topic}
}

type syncCompletedMessage struct {
	EventID     int64             `json:"event_id"`
	Action      string            `json:"action"`
	SyncStatus  string            `json:"sync_status"`
	PlatformIDs map[string]string `json:"social_platform_ids,omitempty"`
	SyncErrors  map[string]string `json:"sync_errors,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

func (n *SyncNotifier) SyncCompleted(ctx context.Context, event *model.Event, action string) {
	if n == nil || n.client == nil {
		return
	}
	payload, err := json.Marshal(syncCompletedMessage{
		EventID:     event.ID,
		Action:      action,
		SyncStatus:  event.SyncStatus,
		PlatformIDs: event.SocialPlatformIDs,
		SyncErrors:  event.SyncErrors,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("pubsub: marshal sync completion")
		return
	}
	topic := n.client.Topic(n.topic)
	if _, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx); err != nil {
		logger.GetLogger().WithField("error", err).WithField("topic", n.topic).Warn("pubsub: publish sync completion failed")
	}
}
