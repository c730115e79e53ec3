package http

import (
	"net/http"
	"strconv"

	"event-sync/domain/dto"
	"event-sync/domain/repository"
	"event-sync/infrastructure/logger"
	"event-sync/usecase"

	"github.com/gin-gonic/gin"
)

type ISyncHandler interface {
	Trigger(ctx *gin.Context)
	Status(ctx *gin.Context)
	ProcessJobs(ctx *gin.Context)
}

type syncHandler struct {
	syncUC    usecase.ISyncUsecase
	eventRepo repository.IEvent
}

func NewSyncHandler(syncUC usecase.ISyncUsecase, eventRepo repository.IEvent) ISyncHandler {
	return &syncHandler{syncUC: syncUC, eventRepo: eventRepo}
}

// Trigger handles POST /api/events/:eventId/sync — fire-and-forget enqueue.
func (h *syncHandler) Trigger(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	var req dto.SyncTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.syncUC.Enqueue(c.Request.Context(), eventID, req.Action, req.Platforms); err != nil {
		logger.GetLogger().WithField("error", err).Error("enqueue sync job failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "event_id": eventID, "action": req.Action})
}

// Status handles GET /api/events/:eventId/sync — the owner-facing view: per
// platform either an external id or a human-readable error string.
func (h *syncHandler) Status(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	event, err := h.eventRepo.GetById(c.Request.Context(), eventID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("load event failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event_not_found"})
		return
	}
	resp := dto.SyncStatusResponse{
		EventID:     event.ID,
		SyncStatus:  event.SyncStatus,
		PlatformIDs: event.SocialPlatformIDs,
		SyncErrors:  event.SyncErrors,
	}
	if event.LastSyncedAt != nil {
		s := event.LastSyncedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.LastSyncedAt = &s
	}
	c.JSON(http.StatusOK, resp)
}

// ProcessJobs handles POST /api/sync/process-jobs — a manual drain used by
// operators and the scheduler fallback.
func (h *syncHandler) ProcessJobs(c *gin.Context) {
	batch := 10
	if v := c.Query("batch"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			batch = n
		}
	}
	if err := h.syncUC.ProcessDueJobs(c.Request.Context(), batch); err != nil {
		logger.GetLogger().WithField("error", err).Error("process sync jobs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "process_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": true})
}
