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

// SyncJobRepository is the queue table behind the synchronization worker.
type SyncJobRepository struct{ db *sql.DB }

func NewSyncJobRepository(db *sql.DB) repository.ISyncJob { return &SyncJobRepository{db: db} }

func (r *SyncJobRepository) Enqueue(ctx context.Context, job *model.SyncJob) error {
	platforms, err := json.Marshal(job.Platforms)
	if err != nil {
		return fmt.Errorf("marshal platforms: %w", err)
	}
	now := time.Now().UTC()
	nextRun := job.NextRunAt
	if nextRun.IsZero() {
		nextRun = now
	}
	return r.db.QueryRowContext(ctx,
		`INSERT INTO sync_jobs (event_id, action, platforms, status, attempts, next_run_at, created_at, updated_at)
		 VALUES ($1,$2,$3,'pending',0,$4,$5,$5) RETURNING id`,
		job.EventID, job.Action, platforms, nextRun, now,
	).Scan(&job.ID)
}

func (r *SyncJobRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.SyncJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, action, platforms, status, attempts, next_run_at, last_error, created_at, updated_at
		 FROM sync_jobs WHERE status='pending' AND next_run_at <= $1 ORDER BY next_run_at ASC LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.SyncJob
	for rows.Next() {
		j := &model.SyncJob{}
		var (
			platforms []byte
			lastErr   sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.EventID, &j.Action, &platforms, &j.Status, &j.Attempts,
			&j.NextRunAt, &lastErr, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		if len(platforms) > 0 {
			if err := json.Unmarshal(platforms, &j.Platforms); err != nil {
				return nil, fmt.Errorf("unmarshal job %d platforms: %w", j.ID, err)
			}
		}
		if lastErr.Valid {
			j.LastError = &lastErr.String
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkRunning claims a pending job; false means another worker got it first.
func (r *SyncJobRepository) MarkRunning(ctx context.Context, jobID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status='running', updated_at=$1 WHERE id=$2 AND status='pending'`,
		time.Now().UTC(), jobID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SyncJobRepository) MarkResult(ctx context.Context, jobID int64, success bool, errMsg *string) error {
	status := model.SyncJobFailed
	if success {
		status = model.SyncJobSuccess
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status=$1, attempts=attempts+1, last_error=$2, updated_at=$3 WHERE id=$4`,
		status, errMsg, time.Now().UTC(), jobID,
	)
	return err
}

// Reschedule puts a job back to pending for a later attempt. The attempt
// counter is bumped only when errMsg is set; a lock-contention requeue does
// not burn an attempt.
func (r *SyncJobRepository) Reschedule(ctx context.Context, jobID int64, nextRunAt time.Time, errMsg *string) error {
	bump := 0
	if errMsg != nil {
		bump = 1
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status='pending', attempts=attempts+$1, next_run_at=$2, last_error=COALESCE($3, last_error), updated_at=$4 WHERE id=$5`,
		bump, nextRunAt, errMsg, time.Now().UTC(), jobID,
	)
	return err
}
