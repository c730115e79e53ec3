package http

import (
	"net/http"

	"event-sync/domain/dto"
	"event-sync/domain/repository"
	"event-sync/infrastructure/configuration"
	"event-sync/infrastructure/logger"
	"event-sync/infrastructure/platform"

	"github.com/gin-gonic/gin"
)

type IOAuthHandler interface {
	GetAuthURL(ctx *gin.Context)
	Callback(ctx *gin.Context)
	Status(ctx *gin.Context)
	Disconnect(ctx *gin.Context)
}

type oauthHandler struct {
	registry *platform.Registry
	connRepo repository.IPlatformConnection
}

func NewOAuthHandler(registry *platform.Registry, connRepo repository.IPlatformConnection) IOAuthHandler {
	return &oauthHandler{registry: registry, connRepo: connRepo}
}

// GetAuthURL handles GET /auth/:platform — builds the platform's authorize
// URL with a signed state so the callback can recover the owner.
func (h *oauthHandler) GetAuthURL(c *gin.Context) {
	adapter, err := h.registry.Resolve(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ownerID := c.GetString("user_id")
	if ownerID == "" {
		ownerID = c.Query("owner_id")
	}
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing owner"})
		return
	}
	authURL, err := adapter.GetAuthorizationURL(c.Request.Context(), ownerID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("build authorization url failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "auth_url_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Callback handles GET /auth/:platform/callback — validates the state,
// exchanges the code and stores the resulting connection.
func (h *oauthHandler) Callback(c *gin.Context) {
	lg := logger.GetLogger()
	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errParam, "description": c.Query("error_description")})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	claims, err := platform.DecodeState(configuration.C.App.SecretKey, c.Query("state"))
	if err != nil {
		lg.WithField("error", err).Warn("oauth callback with invalid state")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		return
	}
	adapter, err := h.registry.Resolve(claims.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conn, err := adapter.ExchangeAuthorizationCode(c.Request.Context(), code, claims.OwnerID)
	if err != nil {
		lg.WithField("error", err).WithField("platform", claims.Platform).Error("authorization code exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "token_exchange_failed"})
		return
	}
	resp := gin.H{"connected": true, "platform": conn.Platform}
	if conn.PlatformPageID != nil {
		resp["page_id"] = *conn.PlatformPageID
	}
	if name, ok := conn.Metadata["page_name"]; ok {
		resp["page_name"] = name
	}
	c.JSON(http.StatusOK, resp)
}

// Status handles GET /api/connections/:platform/status.
func (h *oauthHandler) Status(c *gin.Context) {
	ownerID := c.GetString("user_id")
	platformKey := c.Param("platform")
	conn, err := h.connRepo.GetByOwnerAndPlatform(c.Request.Context(), ownerID, platformKey)
	if err != nil || conn == nil || !conn.IsActive {
		c.JSON(http.StatusOK, dto.ConnectionStatusResponse{Connected: false, Platform: platformKey})
		return
	}
	resp := dto.ConnectionStatusResponse{Connected: true, Platform: platformKey, PageID: conn.PlatformPageID}
	if name, ok := conn.Metadata["page_name"]; ok {
		resp.PageName = &name
	}
	if conn.LastSyncedAt != nil {
		s := conn.LastSyncedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.LastSyncedAt = &s
	}
	c.JSON(http.StatusOK, resp)
}

// Disconnect handles POST /api/connections/:platform/disconnect. The record
// is deactivated, never deleted.
func (h *oauthHandler) Disconnect(c *gin.Context) {
	ownerID := c.GetString("user_id")
	conn, err := h.connRepo.GetByOwnerAndPlatform(c.Request.Context(), ownerID, c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	if conn == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_connected"})
		return
	}
	if err := h.connRepo.Deactivate(c.Request.Context(), conn.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disconnect_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": false})
}
