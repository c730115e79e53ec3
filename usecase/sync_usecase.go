package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/configuration"
	"event-sync/infrastructure/logger"
	"event-sync/infrastructure/platform"
)

// IEventLocker provides per-event exclusivity across the worker pool. TryLock
// reports false when another worker holds the event, and returns a release
// func otherwise.
type IEventLocker interface {
	TryLock(ctx context.Context, eventID int64, ttl time.Duration) (release func(), acquired bool, err error)
}

// ISyncNotifier receives a best-effort notification after each completed run.
type ISyncNotifier interface {
	SyncCompleted(ctx context.Context, event *model.Event, action string)
}

// ISyncHistory records per-run documents for operational tooling.
type ISyncHistory interface {
	Record(ctx context.Context, eventID int64, action, status string, syncErrors map[string]string)
}

type ISyncUsecase interface {
	// Enqueue registers a synchronization run; fire-and-forget for callers.
	Enqueue(ctx context.Context, eventID int64, action string, platforms []string) error
	// SyncEvent performs one run. A returned error is a run-level failure
	// subject to queue retry; per-platform failures are absorbed into the
	// event's sync_errors map.
	SyncEvent(ctx context.Context, req model.SyncRequest) error
	// ProcessDueJobs drains a batch of due jobs from the queue.
	ProcessDueJobs(ctx context.Context, batchSize int) error
}

type syncUsecase struct {
	eventRepo repository.IEvent
	userRepo  repository.IUser
	connRepo  repository.IPlatformConnection
	jobRepo   repository.ISyncJob
	auditRepo repository.ISyncAudit
	registry  *platform.Registry
	tracker   *SyncStateTracker
	locker    IEventLocker
	notifier  ISyncNotifier
	history   ISyncHistory
	conf      configuration.Sync
}

func NewSyncUsecase(
	eventRepo repository.IEvent,
	userRepo repository.IUser,
	connRepo repository.IPlatformConnection,
	jobRepo repository.ISyncJob,
	auditRepo repository.ISyncAudit,
	registry *platform.Registry,
	locker IEventLocker,
	notifier ISyncNotifier,
	history ISyncHistory,
	conf configuration.Sync,
) ISyncUsecase {
	return &syncUsecase{
		eventRepo: eventRepo,
		userRepo:  userRepo,
		connRepo:  connRepo,
		jobRepo:   jobRepo,
		auditRepo: auditRepo,
		registry:  registry,
		tracker:   NewSyncStateTracker(eventRepo),
		locker:    locker,
		notifier:  notifier,
		history:   history,
		conf:      conf,
	}
}

func (u *syncUsecase) Enqueue(ctx context.Context, eventID int64, action string, platforms []string) error {
	if !model.ValidSyncAction(action) {
		return fmt.Errorf("invalid sync action %q", action)
	}
	job := &model.SyncJob{
		EventID:   eventID,
		Action:    action,
		Platforms: platforms,
		Status:    model.SyncJobPending,
		NextRunAt: time.Now().UTC(),
	}
	return u.jobRepo.Enqueue(ctx, job)
}

// SyncEvent is the heart of the engine: it validates the event, iterates the
// owner's active connections sequentially, isolates per-platform failures at
// the connection boundary and recomputes the aggregate status exactly once at
// the end of the run.
func (u *syncUsecase) SyncEvent(ctx context.Context, req model.SyncRequest) error {
	lg := logger.GetLogger().WithField("event_id", req.EventID).WithField("action", req.Action)

	event, err := u.eventRepo.GetById(ctx, req.EventID)
	if err != nil {
		return fmt.Errorf("load event %d: %w", req.EventID, err)
	}
	if event == nil {
		lg.Warn("sync: event not found, nothing to do")
		return nil
	}
	if req.Action != model.SyncActionDelete && !u.tracker.CanBeSynced(event) {
		lg.Info("sync: event not syncable, skipping run")
		return nil
	}

	owner, err := u.userRepo.GetById(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("resolve owner of event %d: %w", req.EventID, err)
	}
	if owner == nil {
		lg.Warn("sync: event has no owner, nothing to sync on behalf of")
		return nil
	}

	connections, err := u.connRepo.ActiveConnectionsFor(ctx, owner.ID, req.Platforms)
	if err != nil {
		return fmt.Errorf("load connections for owner %s: %w", owner.ID, err)
	}
	if len(connections) == 0 {
		lg.Info("sync: no active connections, skipping run")
		return nil
	}

	// Sequential on purpose: per-platform error isolation stays trivially
	// race-free, and the aggregate recompute below is the join point.
	okCount, errCount := 0, 0
	for _, conn := range connections {
		if err := u.syncOneConnection(ctx, event, conn, req.Action); err != nil {
			errCount++
			if trackErr := u.tracker.SetError(ctx, event, conn.Platform, err.Error()); trackErr != nil {
				return fmt.Errorf("record error for platform %s: %w", conn.Platform, trackErr)
			}
			lg.WithField("platform", conn.Platform).WithField("error", err).Warn("sync: platform failed")
			continue
		}
		okCount++
	}

	if err := u.tracker.RecomputeAggregateStatus(ctx, event); err != nil {
		return fmt.Errorf("recompute aggregate status: %w", err)
	}

	u.recordRun(ctx, event, req.Action, okCount, errCount)
	lg.WithField("ok", okCount).WithField("failed", errCount).Info("sync: run complete")
	return nil
}

// syncOneConnection drives one connection through its adapter. Every error
// returned here is a connection-level error, absorbed by the caller into
// sync_errors; it never aborts the run.
func (u *syncUsecase) syncOneConnection(ctx context.Context, event *model.Event, conn *model.PlatformConnection, action string) error {
	adapter, err := u.registry.Resolve(conn.Platform)
	if err != nil {
		return err
	}

	// Deleting a mapping that never existed is a no-op; skip validation too.
	existingID, hasID := u.tracker.PlatformID(event, conn.Platform)
	if action == model.SyncActionDelete && !hasID {
		return nil
	}

	if !adapter.ValidateConnection(ctx, conn) {
		return errors.New("invalid connection")
	}

	switch action {
	case model.SyncActionCreate:
		id, err := adapter.CreateEvent(ctx, event, conn)
		if err != nil {
			return err
		}
		if err := u.tracker.SetPlatformID(ctx, event, conn.Platform, id); err != nil {
			return err
		}
	case model.SyncActionUpdate:
		if hasID {
			if err := adapter.UpdateEvent(ctx, event, conn); err != nil {
				return err
			}
		} else {
			// No mapping yet: fall back to create so an update request on a
			// never-synced platform still converges.
			id, err := adapter.CreateEvent(ctx, event, conn)
			if err != nil {
				return err
			}
			if err := u.tracker.SetPlatformID(ctx, event, conn.Platform, id); err != nil {
				return err
			}
		}
	case model.SyncActionDelete:
		if err := adapter.DeleteEvent(ctx, existingID, conn); err != nil {
			return err
		}
		if err := u.tracker.RemovePlatformID(ctx, event, conn.Platform); err != nil {
			return err
		}
		if err := u.connRepo.TouchLastSynced(ctx, conn.ID); err != nil {
			logger.GetLogger().WithField("error", err).Warn("sync: touch connection failed")
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	if err := u.tracker.MarkSynced(ctx, event, conn.Platform); err != nil {
		return err
	}
	if err := u.connRepo.TouchLastSynced(ctx, conn.ID); err != nil {
		logger.GetLogger().WithField("error", err).Warn("sync: touch connection failed")
	}
	return nil
}

// ProcessDueJobs is the queue consumer loop body: fetch due jobs, take the
// per-event lock, run with the wall-clock timeout, and apply the retry policy
// on run-level failure.
func (u *syncUsecase) ProcessDueJobs(ctx context.Context, batchSize int) error {
	jobs, err := u.jobRepo.FetchDue(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		u.processJob(ctx, job)
	}
	return nil
}

func (u *syncUsecase) processJob(ctx context.Context, job *model.SyncJob) {
	lg := logger.GetLogger().WithField("job_id", job.ID).WithField("event_id", job.EventID)

	claimed, err := u.jobRepo.MarkRunning(ctx, job.ID)
	if err != nil || !claimed {
		return
	}

	release, acquired, err := u.locker.TryLock(ctx, job.EventID, u.conf.RunTimeout()+30*time.Second)
	if err != nil {
		lg.WithField("error", err).Error("sync: lock acquisition failed")
		u.rescheduleOrFail(ctx, job, err)
		return
	}
	if !acquired {
		// Another worker is on this event; back off without burning an attempt.
		lg.Debug("sync: event locked by another run, requeueing")
		_ = u.jobRepo.Reschedule(ctx, job.ID, time.Now().UTC().Add(30*time.Second), nil)
		return
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, u.conf.RunTimeout())
	defer cancel()

	req := model.SyncRequest{EventID: job.EventID, Action: job.Action, Platforms: job.Platforms}
	if runErr := u.SyncEvent(runCtx, req); runErr != nil {
		lg.WithField("error", runErr).Warn("sync: run failed")
		u.rescheduleOrFail(ctx, job, runErr)
		return
	}
	_ = u.jobRepo.MarkResult(ctx, job.ID, true, nil)
}

// rescheduleOrFail applies the backoff schedule and, once attempts are
// exhausted, the terminal failure handler: the event is marked failed and
// persisted so visibility does not depend on log inspection.
func (u *syncUsecase) rescheduleOrFail(ctx context.Context, job *model.SyncJob, runErr error) {
	msg := runErr.Error()
	attempt := job.Attempts + 1
	if attempt < u.conf.MaxAttempts {
		next := time.Now().UTC().Add(u.conf.Backoff(attempt))
		if err := u.jobRepo.Reschedule(ctx, job.ID, next, &msg); err != nil {
			logger.GetLogger().WithField("error", err).Error("sync: reschedule failed")
		}
		return
	}
	_ = u.jobRepo.MarkResult(ctx, job.ID, false, &msg)
	event, err := u.eventRepo.GetById(ctx, job.EventID)
	if err != nil || event == nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Error("sync: terminal failure, event unavailable")
		return
	}
	event.SyncStatus = model.SyncStatusFailed
	if err := u.eventRepo.Save(ctx, event); err != nil {
		logger.GetLogger().WithField("error", err).Error("sync: persist terminal failure")
	}
}

// recordRun fans the run outcome out to the audit trail, the run history
// store and the notifier. All three are best-effort.
func (u *syncUsecase) recordRun(ctx context.Context, event *model.Event, action string, okCount, errCount int) {
	if u.auditRepo != nil {
		var summary *string
		if len(event.SyncErrors) > 0 {
			parts := make([]string, 0, len(event.SyncErrors))
			for p, m := range event.SyncErrors {
				parts = append(parts, fmt.Sprintf("%s: %s", p, m))
			}
			s := strings.Join(parts, "; ")
			summary = &s
		}
		audit := &model.SyncAudit{
			EventID:      event.ID,
			Action:       action,
			Status:       event.SyncStatus,
			PlatformsOK:  okCount,
			PlatformsErr: errCount,
			ErrorSummary: summary,
		}
		if err := u.auditRepo.Append(ctx, audit); err != nil {
			logger.GetLogger().WithField("error", err).Warn("sync: audit append failed")
		}
	}
	if u.history != nil {
		u.history.Record(ctx, event.ID, action, event.SyncStatus, event.SyncErrors)
	}
	if u.notifier != nil {
		u.notifier.SyncCompleted(ctx, event, action)
	}
}
