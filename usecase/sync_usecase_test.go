package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/configuration"
	"event-sync/infrastructure/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeEventRepo struct {
	events map[int64]*model.Event
	saves  int
}

func (f *fakeEventRepo) GetById(_ context.Context, id int64) (*model.Event, error) {
	return f.events[id], nil
}

func (f *fakeEventRepo) Save(_ context.Context, event *model.Event) error {
	f.saves++
	f.events[event.ID] = event
	return nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func (f *fakeUserRepo) GetById(_ context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetByUserName(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

type fakeConnRepo struct {
	connections []*model.PlatformConnection
	touched     []int64
}

func (f *fakeConnRepo) Upsert(_ context.Context, c *model.PlatformConnection) (*model.PlatformConnection, error) {
	return c, nil
}

func (f *fakeConnRepo) ActiveConnectionsFor(_ context.Context, ownerID string, platforms []string) ([]*model.PlatformConnection, error) {
	var out []*model.PlatformConnection
	for _, c := range f.connections {
		if c.OwnerID != ownerID || !c.IsActive {
			continue
		}
		if len(platforms) > 0 {
			found := false
			for _, p := range platforms {
				if p == c.Platform {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeConnRepo) GetByOwnerAndPlatform(_ context.Context, _, _ string) (*model.PlatformConnection, error) {
	return nil, nil
}

func (f *fakeConnRepo) Deactivate(_ context.Context, _ int64) error { return nil }

func (f *fakeConnRepo) TouchLastSynced(_ context.Context, id int64) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeJobRepo struct {
	jobs        []*model.SyncJob
	rescheduled []time.Time
	results     []bool
}

func (f *fakeJobRepo) Enqueue(_ context.Context, job *model.SyncJob) error {
	job.ID = int64(len(f.jobs) + 1)
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobRepo) FetchDue(_ context.Context, now time.Time, _ int) ([]*model.SyncJob, error) {
	var due []*model.SyncJob
	for _, j := range f.jobs {
		if j.Status == model.SyncJobPending && !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	return due, nil
}

func (f *fakeJobRepo) MarkRunning(_ context.Context, jobID int64) (bool, error) {
	for _, j := range f.jobs {
		if j.ID == jobID && j.Status == model.SyncJobPending {
			j.Status = model.SyncJobRunning
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobRepo) MarkResult(_ context.Context, jobID int64, success bool, errMsg *string) error {
	f.results = append(f.results, success)
	for _, j := range f.jobs {
		if j.ID == jobID {
			j.Attempts++
			j.LastError = errMsg
			if success {
				j.Status = model.SyncJobSuccess
			} else {
				j.Status = model.SyncJobFailed
			}
		}
	}
	return nil
}

func (f *fakeJobRepo) Reschedule(_ context.Context, jobID int64, nextRunAt time.Time, errMsg *string) error {
	f.rescheduled = append(f.rescheduled, nextRunAt)
	for _, j := range f.jobs {
		if j.ID == jobID {
			j.Status = model.SyncJobPending
			j.NextRunAt = nextRunAt
			if errMsg != nil {
				j.Attempts++
				j.LastError = errMsg
			}
		}
	}
	return nil
}

type fakeLocker struct {
	held map[int64]bool
}

func (f *fakeLocker) TryLock(_ context.Context, eventID int64, _ time.Duration) (func(), bool, error) {
	if f.held[eventID] {
		return nil, false, nil
	}
	return func() {}, true, nil
}

// fakeAdapter is a programmable ISocialPlatform.
type fakeAdapter struct {
	key         string
	valid       bool
	createErr   error
	createID    string
	createCalls int
	updateCalls int
	deleteCalls int
}

func (a *fakeAdapter) Key() string { return a.key }

func (a *fakeAdapter) GetAuthorizationURL(_ context.Context, _ string) (string, error) {
	return "https://example.com/auth", nil
}

func (a *fakeAdapter) ExchangeAuthorizationCode(_ context.Context, _, _ string) (*model.PlatformConnection, error) {
	return nil, errors.New("not implemented")
}

func (a *fakeAdapter) ValidateConnection(_ context.Context, _ *model.PlatformConnection) bool {
	return a.valid
}

func (a *fakeAdapter) CreateEvent(_ context.Context, _ *model.Event, _ *model.PlatformConnection) (string, error) {
	a.createCalls++
	if a.createErr != nil {
		return "", a.createErr
	}
	return a.createID, nil
}

func (a *fakeAdapter) UpdateEvent(_ context.Context, _ *model.Event, _ *model.PlatformConnection) error {
	a.updateCalls++
	return nil
}

func (a *fakeAdapter) DeleteEvent(_ context.Context, _ string, _ *model.PlatformConnection) error {
	a.deleteCalls++
	return nil
}

func (a *fakeAdapter) UploadEventImage(_ context.Context, _, _ string, _ *model.PlatformConnection) error {
	return nil
}

// ---- helpers ----

func activeEvent(id int64) *model.Event {
	start := time.Now().Add(24 * time.Hour)
	return &model.Event{
		ID:         id,
		OwnerID:    "owner-1",
		Name:       "Launch party",
		StartTime:  start,
		Status:     model.EventStatusActive,
		SyncStatus: model.SyncStatusPending,
	}
}

func connectionFor(id int64, platform string) *model.PlatformConnection {
	return &model.PlatformConnection{
		ID:       id,
		OwnerID:  "owner-1",
		Platform: platform,
		IsActive: true,
	}
}

type fixture struct {
	eventRepo *fakeEventRepo
	connRepo  *fakeConnRepo
	jobRepo   *fakeJobRepo
	uc        ISyncUsecase
}

func newFixture(t *testing.T, event *model.Event, conns []*model.PlatformConnection, adapters ...*fakeAdapter) *fixture {
	t.Helper()
	eventRepo := &fakeEventRepo{events: map[int64]*model.Event{event.ID: event}}
	userRepo := &fakeUserRepo{users: map[string]*model.User{"owner-1": {ID: "owner-1", UserName: "owner"}}}
	connRepo := &fakeConnRepo{connections: conns}
	jobRepo := &fakeJobRepo{}

	regAdapters := make([]repository.ISocialPlatform, 0, len(adapters))
	for _, a := range adapters {
		regAdapters = append(regAdapters, a)
	}
	reg := platform.NewRegistry(regAdapters...)

	uc := NewSyncUsecase(eventRepo, userRepo, connRepo, jobRepo, nil, reg,
		&fakeLocker{}, nil, nil, configuration.Sync{MaxAttempts: 3})
	return &fixture{eventRepo: eventRepo, connRepo: connRepo, jobRepo: jobRepo, uc: uc}
}

// ---- tests ----

// TestSyncEvent_AllSuccess verifies that N succeeding connections yield a
// synced aggregate with N platform ids and no errors.
func TestSyncEvent_AllSuccess(t *testing.T) {
	event := activeEvent(1)
	fb := &fakeAdapter{key: "facebook", valid: true, createID: "fb-123"}
	gg := &fakeAdapter{key: "google", valid: true, createID: "gg-456"}
	f := newFixture(t, event,
		[]*model.PlatformConnection{connectionFor(1, "facebook"), connectionFor(2, "google")},
		fb, gg,
	)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionCreate})
	require.NoError(t, err)

	got := f.eventRepo.events[1]
	assert.Equal(t, model.SyncStatusSynced, got.SyncStatus)
	assert.Empty(t, got.SyncErrors)
	assert.Equal(t, map[string]string{"facebook": "fb-123", "google": "gg-456"}, got.SocialPlatformIDs)
	assert.NotNil(t, got.LastSyncedAt)
	assert.ElementsMatch(t, []int64{1, 2}, f.connRepo.touched)
}

// TestSyncEvent_PartialFailureIsolation verifies the core guarantee: platform
// A failing does not block platform B, and the aggregate reflects the failure.
func TestSyncEvent_PartialFailureIsolation(t *testing.T) {
	event := activeEvent(1)
	fb := &fakeAdapter{key: "facebook", valid: true, createErr: errors.New("status 500: boom")}
	gg := &fakeAdapter{key: "google", valid: true, createID: "gg-456"}
	f := newFixture(t, event,
		[]*model.PlatformConnection{connectionFor(1, "facebook"), connectionFor(2, "google")},
		fb, gg,
	)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionCreate})
	require.NoError(t, err)

	got := f.eventRepo.events[1]
	assert.Equal(t, model.SyncStatusFailed, got.SyncStatus)
	assert.Equal(t, map[string]string{"facebook": "status 500: boom"}, got.SyncErrors)
	assert.Equal(t, map[string]string{"google": "gg-456"}, got.SocialPlatformIDs)
	assert.Equal(t, 1, gg.createCalls)
}

// TestSyncEvent_InvalidConnectionRecorded verifies a failed liveness check is
// recorded per-platform without raising.
func TestSyncEvent_InvalidConnectionRecorded(t *testing.T) {
	event := activeEvent(1)
	fb := &fakeAdapter{key: "facebook", valid: false}
	f := newFixture(t, event, []*model.PlatformConnection{connectionFor(1, "facebook")}, fb)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionCreate})
	require.NoError(t, err)

	got := f.eventRepo.events[1]
	assert.Equal(t, "invalid connection", got.SyncErrors["facebook"])
	assert.Equal(t, model.SyncStatusFailed, got.SyncStatus)
	assert.Zero(t, fb.createCalls)
}

// TestSyncEvent_NoOpForCancelledEvent verifies create/update on a cancelled
// event performs zero adapter calls and leaves sync state untouched.
func TestSyncEvent_NoOpForCancelledEvent(t *testing.T) {
	event := activeEvent(1)
	event.Status = model.EventStatusCancelled
	fb := &fakeAdapter{key: "facebook", valid: true, createID: "fb-1"}
	f := newFixture(t, event, []*model.PlatformConnection{connectionFor(1, "facebook")}, fb)

	for _, action := range []string{model.SyncActionCreate, model.SyncActionUpdate} {
		err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: action})
		require.NoError(t, err)
	}
	assert.Zero(t, fb.createCalls)
	assert.Zero(t, fb.updateCalls)
	assert.Zero(t, f.eventRepo.saves)
	assert.Equal(t, model.SyncStatusPending, f.eventRepo.events[1].SyncStatus)
}

// TestSyncEvent_DeleteProceedsForCancelledEvent verifies deletions bypass the
// syncability gate so a cancelled event is still removed externally.
func TestSyncEvent_DeleteProceedsForCancelledEvent(t *testing.T) {
	event := activeEvent(1)
	event.Status = model.EventStatusCancelled
	event.SetPlatformID("facebook", "fb-123")
	fb := &fakeAdapter{key: "facebook", valid: true}
	f := newFixture(t, event, []*model.PlatformConnection{connectionFor(1, "facebook")}, fb)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionDelete})
	require.NoError(t, err)

	assert.Equal(t, 1, fb.deleteCalls)
	_, ok := f.eventRepo.events[1].PlatformID("facebook")
	assert.False(t, ok)
}

// TestSyncEvent_UpdateFallsBackToCreate verifies update with no existing
// mapping issues exactly one create and populates the mapping.
func TestSyncEvent_UpdateFallsBackToCreate(t *testing.T) {
	event := activeEvent(1)
	fb := &fakeAdapter{key: "facebook", valid: true, createID: "fb-999"}
	f := newFixture(t, event, []*model.PlatformConnection{connectionFor(1, "facebook")}, fb)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionUpdate})
	require.NoError(t, err)

	assert.Equal(t, 1, fb.createCalls)
	assert.Zero(t, fb.updateCalls)
	id, ok := f.eventRepo.events[1].PlatformID("facebook")
	require.True(t, ok)
	assert.Equal(t, "fb-999", id)
}

// TestSyncEvent_UpdateUsesExistingMapping verifies update goes through
// UpdateEvent once a platform id exists.
func TestSyncEvent_UpdateUsesExistingMapping(t *testing.T) {
	event := activeEvent(1)
	event.SetPlatformID("facebook", "fb-123")
	fb := &fakeAdapter{key: "facebook", valid: true}
	f := newFixture(t, event, []*model.PlatformConnection{connectionFor(1, "facebook")}, fb)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionUpdate})
	require.NoError(t, err)

	assert.Equal(t, 1, fb.updateCalls)
	assert.Zero(t, fb.createCalls)
}

// TestSyncEvent_DeleteIdempotence verifies the second delete run makes no
// adapter call: the mapping is gone after the first.
func TestSyncEvent_DeleteIdempotence(t *testing.T) {
	event := activeEvent(1)
	event.SetPlatformID("facebook", "fb-123")
	fb := &fakeAdapter{key: "facebook", valid: true}
	f := newFixture(t, event, []*model.PlatformConnection{connectionFor(1, "facebook")}, fb)

	for i := 0; i < 2; i++ {
		err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionDelete})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fb.deleteCalls)
}

// TestSyncEvent_UnsupportedPlatformRecorded verifies a connection whose
// platform has no registered adapter becomes a per-platform error, not a
// run-level failure.
func TestSyncEvent_UnsupportedPlatformRecorded(t *testing.T) {
	event := activeEvent(1)
	gg := &fakeAdapter{key: "google", valid: true, createID: "gg-1"}
	f := newFixture(t, event,
		[]*model.PlatformConnection{connectionFor(1, "myspace"), connectionFor(2, "google")},
		gg,
	)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{EventID: 1, Action: model.SyncActionCreate})
	require.NoError(t, err)

	got := f.eventRepo.events[1]
	assert.Contains(t, got.SyncErrors["myspace"], "unsupported platform")
	assert.Equal(t, "gg-1", got.SocialPlatformIDs["google"])
	assert.Equal(t, model.SyncStatusFailed, got.SyncStatus)
}

// TestSyncEvent_PlatformFilter verifies a requested platform subset limits the
// connections driven.
func TestSyncEvent_PlatformFilter(t *testing.T) {
	event := activeEvent(1)
	fb := &fakeAdapter{key: "facebook", valid: true, createID: "fb-1"}
	gg := &fakeAdapter{key: "google", valid: true, createID: "gg-1"}
	f := newFixture(t, event,
		[]*model.PlatformConnection{connectionFor(1, "facebook"), connectionFor(2, "google")},
		fb, gg,
	)

	err := f.uc.SyncEvent(context.Background(), model.SyncRequest{
		EventID: 1, Action: model.SyncActionCreate, Platforms: []string{"google"},
	})
	require.NoError(t, err)

	assert.Zero(t, fb.createCalls)
	assert.Equal(t, 1, gg.createCalls)
}

// TestEnqueue_RejectsInvalidAction guards the dispatch surface.
func TestEnqueue_RejectsInvalidAction(t *testing.T) {
	f := newFixture(t, activeEvent(1), nil)
	err := f.uc.Enqueue(context.Background(), 1, "publish", nil)
	require.Error(t, err)
	assert.Empty(t, f.jobRepo.jobs)
}

// TestProcessDueJobs_RetriesWithBackoffThenFails exercises the retry policy:
// run-level failures reschedule with the configured backoff and, once
// attempts are exhausted, the event is marked failed.
func TestProcessDueJobs_RetriesWithBackoffThenFails(t *testing.T) {
	event := activeEvent(1)
	eventRepo := &failingThenEventRepo{event: event}
	userRepo := &fakeUserRepo{users: map[string]*model.User{"owner-1": {ID: "owner-1"}}}
	connRepo := &fakeConnRepo{}
	jobRepo := &fakeJobRepo{}
	reg := platform.NewRegistry()

	uc := NewSyncUsecase(eventRepo, userRepo, connRepo, jobRepo, nil, reg,
		&fakeLocker{}, nil, nil, configuration.Sync{MaxAttempts: 3, BackoffMinutes: []int{1, 5, 15}})

	require.NoError(t, uc.Enqueue(context.Background(), 1, model.SyncActionCreate, nil))

	// Attempt 1 and 2: run-level failure, rescheduled.
	for i := 0; i < 2; i++ {
		jobRepo.jobs[0].NextRunAt = time.Now().Add(-time.Minute)
		require.NoError(t, uc.ProcessDueJobs(context.Background(), 10))
	}
	require.Len(t, jobRepo.rescheduled, 2)
	assert.WithinDuration(t, time.Now().Add(time.Minute), jobRepo.rescheduled[0], 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), jobRepo.rescheduled[1], 5*time.Second)

	// Attempt 3: exhausted, terminal failure handler runs.
	jobRepo.jobs[0].NextRunAt = time.Now().Add(-time.Minute)
	require.NoError(t, uc.ProcessDueJobs(context.Background(), 10))
	assert.Equal(t, model.SyncJobFailed, jobRepo.jobs[0].Status)
	assert.Equal(t, model.SyncStatusFailed, event.SyncStatus)
}

// failingThenEventRepo fails GetById during runs but allows the terminal
// handler's load+save to succeed on the final attempt.
type failingThenEventRepo struct {
	event *model.Event
	calls int
}

func (f *failingThenEventRepo) GetById(_ context.Context, _ int64) (*model.Event, error) {
	f.calls++
	if f.calls <= 3 {
		return nil, fmt.Errorf("storage unavailable")
	}
	return f.event, nil
}

func (f *failingThenEventRepo) Save(_ context.Context, event *model.Event) error {
	f.event = event
	return nil
}

// TestProcessDueJobs_SkipsLockedEvent verifies lock contention requeues the
// job without burning an attempt.
func TestProcessDueJobs_SkipsLockedEvent(t *testing.T) {
	event := activeEvent(1)
	eventRepo := &fakeEventRepo{events: map[int64]*model.Event{1: event}}
	userRepo := &fakeUserRepo{users: map[string]*model.User{"owner-1": {ID: "owner-1"}}}
	jobRepo := &fakeJobRepo{}
	uc := NewSyncUsecase(eventRepo, userRepo, &fakeConnRepo{}, jobRepo, nil,
		platform.NewRegistry(), &fakeLocker{held: map[int64]bool{1: true}}, nil, nil,
		configuration.Sync{MaxAttempts: 3})

	require.NoError(t, uc.Enqueue(context.Background(), 1, model.SyncActionCreate, nil))
	jobRepo.jobs[0].NextRunAt = time.Now().Add(-time.Minute)
	require.NoError(t, uc.ProcessDueJobs(context.Background(), 10))

	assert.Equal(t, model.SyncJobPending, jobRepo.jobs[0].Status)
	assert.Zero(t, jobRepo.jobs[0].Attempts)
}
