package persistence

import (
	"context"
	"testing"
	"time"

	"event-sync/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncJobRepository_Enqueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &SyncJobRepository{db: db}

	mock.ExpectQuery("INSERT INTO sync_jobs").
		WithArgs(int64(5), "create", []byte(`["facebook"]`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	job := &model.SyncJob{EventID: 5, Action: model.SyncActionCreate, Platforms: []string{"facebook"}}
	require.NoError(t, repo.Enqueue(context.Background(), job))
	assert.Equal(t, int64(11), job.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncJobRepository_FetchDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &SyncJobRepository{db: db}

	now := time.Now().UTC()
	lastErr := "status 500: boom"
	mock.ExpectQuery("SELECT (.+) FROM sync_jobs WHERE status='pending'").
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_id", "action", "platforms", "status", "attempts", "next_run_at", "last_error", "created_at", "updated_at",
		}).
			AddRow(int64(1), int64(5), "create", []byte(`["facebook"]`), "pending", 1, now, lastErr, now, now).
			AddRow(int64(2), int64(6), "delete", nil, "pending", 0, now, nil, now, now))

	jobs, err := repo.FetchDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, []string{"facebook"}, jobs[0].Platforms)
	require.NotNil(t, jobs[0].LastError)
	assert.Equal(t, lastErr, *jobs[0].LastError)
	assert.Nil(t, jobs[1].Platforms)
	assert.Nil(t, jobs[1].LastError)
}

// TestSyncJobRepository_MarkRunning verifies the compare-and-set claim: one
// affected row means ours, zero means another worker won.
func TestSyncJobRepository_MarkRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &SyncJobRepository{db: db}

	mock.ExpectExec("UPDATE sync_jobs SET status='running'").
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	claimed, err := repo.MarkRunning(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, claimed)

	mock.ExpectExec("UPDATE sync_jobs SET status='running'").
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	claimed, err = repo.MarkRunning(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, claimed)
}

// TestSyncJobRepository_Reschedule verifies the attempt counter is bumped for
// failures but not for lock-contention requeues.
func TestSyncJobRepository_Reschedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &SyncJobRepository{db: db}
	next := time.Now().UTC().Add(5 * time.Minute)

	msg := "status 500: boom"
	mock.ExpectExec("UPDATE sync_jobs SET status='pending'").
		WithArgs(1, next, msg, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Reschedule(context.Background(), 1, next, &msg))

	mock.ExpectExec("UPDATE sync_jobs SET status='pending'").
		WithArgs(0, next, nil, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Reschedule(context.Background(), 1, next, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncJobRepository_MarkResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &SyncJobRepository{db: db}

	mock.ExpectExec("UPDATE sync_jobs SET status=").
		WithArgs(model.SyncJobSuccess, nil, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkResult(context.Background(), 1, true, nil))

	msg := "timed out"
	mock.ExpectExec("UPDATE sync_jobs SET status=").
		WithArgs(model.SyncJobFailed, msg, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkResult(context.Background(), 1, false, &msg))
}
