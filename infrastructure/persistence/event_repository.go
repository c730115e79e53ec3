package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
)

// EventRepository persists events with their sync-state maps as JSONB, so
// per-platform entries stay queryable by operational tooling.
type EventRepository struct{ db *sql.DB }

func NewEventRepository(db *sql.DB) repository.IEvent { return &EventRepository{db: db} }

func (r *EventRepository) GetById(ctx context.Context, id int64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, owner_id, name, description, start_time, end_time, location, slug, status,
		cover_image, social_platform_ids, sync_status, sync_errors, last_synced_at, created_at, updated_at
		FROM events WHERE id=$1`, id)

	e := &model.Event{}
	var (
		endTime, lastSyncedAt sql.NullTime
		coverImage            sql.NullString
		platformIDs, syncErrs []byte
	)
	if err := row.Scan(
		&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.StartTime, &endTime, &e.Location, &e.Slug, &e.Status,
		&coverImage, &platformIDs, &e.SyncStatus, &syncErrs, &lastSyncedAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if endTime.Valid {
		t := endTime.Time
		e.EndTime = &t
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		e.LastSyncedAt = &t
	}
	if coverImage.Valid {
		e.CoverImage = coverImage.String
	}
	if len(platformIDs) > 0 {
		if err := json.Unmarshal(platformIDs, &e.SocialPlatformIDs); err != nil {
			return nil, fmt.Errorf("unmarshal event %d platform ids: %w", e.ID, err)
		}
	}
	if len(syncErrs) > 0 {
		if err := json.Unmarshal(syncErrs, &e.SyncErrors); err != nil {
			return nil, fmt.Errorf("unmarshal event %d sync errors: %w", e.ID, err)
		}
	}
	return e, nil
}

func (r *EventRepository) Save(ctx context.Context, event *model.Event) error {
	platformIDs, err := json.Marshal(emptyAsObject(event.SocialPlatformIDs))
	if err != nil {
		return fmt.Errorf("marshal platform ids: %w", err)
	}
	syncErrs, err := json.Marshal(emptyAsObject(event.SyncErrors))
	if err != nil {
		return fmt.Errorf("marshal sync errors: %w", err)
	}
	event.UpdatedAt = time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `UPDATE events SET
		name=$1, description=$2, start_time=$3, end_time=$4, location=$5, slug=$6, status=$7, cover_image=$8,
		social_platform_ids=$9, sync_status=$10, sync_errors=$11, last_synced_at=$12, updated_at=$13
		WHERE id=$14`,
		event.Name, event.Description, event.StartTime, event.EndTime, event.Location, event.Slug,
		event.Status, nullableString(event.CoverImage), platformIDs, event.SyncStatus, syncErrs,
		event.LastSyncedAt, event.UpdatedAt, event.ID,
	)
	return err
}

// emptyAsObject keeps nil maps serialized as {} rather than null, which keeps
// JSONB containment queries uniform.
func emptyAsObject(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
