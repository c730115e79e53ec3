package repository

import (
	"context"

	"event-sync/domain/model"
)

// IEvent is the event storage collaborator. Sync-state maps are persisted as
// first-class JSONB attributes, not opaque blobs.
type IEvent interface {
	GetById(ctx context.Context, id int64) (*model.Event, error)
	Save(ctx context.Context, event *model.Event) error
}

// IUser resolves event owners.
type IUser interface {
	GetById(ctx context.Context, id string) (*model.User, error)
	GetByUserName(ctx context.Context, userName string) (*model.User, error)
}
