package persistence

import (
	"context"
	"time"

	"event-sync/infrastructure/logger"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// SyncHistoryRepository stores one document per worker run in MongoDB for
// operational tooling. All writes are best-effort; a missing Mongo client
// turns every call into a no-op.
type SyncHistoryRepository struct {
	client   *mongo.Client
	database string
}

func NewSyncHistoryRepository(client *mongo.Client, database string) *SyncHistoryRepository {
	return &SyncHistoryRepository{client: client, database: database}
}

type syncRunDocument struct {
	EventID    int64             `bson:"event_id"`
	Action     string            `bson:"action"`
	Status     string            `bson:"status"`
	SyncErrors map[string]string `bson:"sync_errors,omitempty"`
	RecordedAt time.Time         `bson:"recorded_at"`
}

func (r *SyncHistoryRepository) Record(ctx context.Context, eventID int64, action, status string, syncErrors map[string]string) {
	if r == nil || r.client == nil {
		return
	}
	doc := syncRunDocument{
		EventID:    eventID,
		Action:     action,
		Status:     status,
		SyncErrors: syncErrors,
		RecordedAt: time.Now().UTC(),
	}
	collection := r.client.Database(r.database).Collection("sync_runs")
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		logger.GetLogger().WithField("error", err).Warn("mongo: record sync run failed")
	}
}
