package usecase

import (
	"context"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
)

// SyncStateTracker owns all mutations of an event's sync-state fields. Every
// mutation persists the event immediately so the stored state always reflects
// each platform's true state, even when a later platform in the same run
// fails.
type SyncStateTracker struct {
	eventRepo repository.IEvent
}

func NewSyncStateTracker(eventRepo repository.IEvent) *SyncStateTracker {
	return &SyncStateTracker{eventRepo: eventRepo}
}

func (t *SyncStateTracker) SetPlatformID(ctx context.Context, event *model.Event, platform, id string) error {
	event.SetPlatformID(platform, id)
	return t.eventRepo.Save(ctx, event)
}

func (t *SyncStateTracker) PlatformID(event *model.Event, platform string) (string, bool) {
	return event.PlatformID(platform)
}

func (t *SyncStateTracker) RemovePlatformID(ctx context.Context, event *model.Event, platform string) error {
	event.RemovePlatformID(platform)
	return t.eventRepo.Save(ctx, event)
}

// SetError records a platform's failure and forces the aggregate status to
// failed; a non-empty error map with a "synced" status would violate the
// state invariant.
func (t *SyncStateTracker) SetError(ctx context.Context, event *model.Event, platform, message string) error {
	event.SetSyncError(platform, message)
	event.SyncStatus = model.SyncStatusFailed
	return t.eventRepo.Save(ctx, event)
}

func (t *SyncStateTracker) ClearError(ctx context.Context, event *model.Event, platform string) error {
	event.ClearSyncError(platform)
	return t.eventRepo.Save(ctx, event)
}

// MarkSynced clears the platform's error entry and stamps last_synced_at.
func (t *SyncStateTracker) MarkSynced(ctx context.Context, event *model.Event, platform string) error {
	event.ClearSyncError(platform)
	now := time.Now().UTC()
	event.LastSyncedAt = &now
	return t.eventRepo.Save(ctx, event)
}

// RecomputeAggregateStatus derives the aggregate status from the error map.
// It runs exactly once per worker run, after all platforms were attempted, so
// one platform's success cannot mask another's recorded failure. An owner
// opt-out (disabled) is preserved.
func (t *SyncStateTracker) RecomputeAggregateStatus(ctx context.Context, event *model.Event) error {
	if event.SyncStatus != model.SyncStatusDisabled {
		if len(event.SyncErrors) == 0 {
			event.SyncStatus = model.SyncStatusSynced
		} else {
			event.SyncStatus = model.SyncStatusFailed
		}
	}
	now := time.Now().UTC()
	event.LastSyncedAt = &now
	return t.eventRepo.Save(ctx, event)
}

// CanBeSynced gates create/update runs. Cancelled or already-ended events and
// owner-disabled sync are excluded; deletions bypass this check entirely so a
// cancelled event can still be removed from external platforms.
func (t *SyncStateTracker) CanBeSynced(event *model.Event) bool {
	if event.SyncStatus == model.SyncStatusDisabled {
		return false
	}
	if event.IsCancelled() {
		return false
	}
	if event.HasEnded(time.Now().UTC()) {
		return false
	}
	return true
}
