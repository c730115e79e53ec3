package repository

import (
	"context"
	"time"

	"event-sync/domain/model"
)

// ISyncJob is the queue table behind the synchronization worker.
type ISyncJob interface {
	Enqueue(ctx context.Context, job *model.SyncJob) error
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.SyncJob, error)
	MarkRunning(ctx context.Context, jobID int64) (bool, error)
	MarkResult(ctx context.Context, jobID int64, success bool, errMsg *string) error
	// Reschedule puts a failed job back to pending with the next attempt time.
	Reschedule(ctx context.Context, jobID int64, nextRunAt time.Time, errMsg *string) error
}

// ISyncAudit appends one row per completed worker run.
type ISyncAudit interface {
	Append(ctx context.Context, audit *model.SyncAudit) error
}
