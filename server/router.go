package server

import (
	"net/http"
	"time"

	"event-sync/domain/repository"
	httpHandler "event-sync/interfaces/http"
	"event-sync/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitiateRouter(
	oauthHandler httpHandler.IOAuthHandler,
	syncHandler httpHandler.ISyncHandler,
	userRepository repository.IUser,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "https://localhost:4200"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// OAuth handshake routes stay outside the auth group: the platform's
	// redirect arrives without our bearer token, the signed state carries the
	// owner instead.
	router.GET("/auth/:platform", oauthHandler.GetAuthURL)
	router.GET("/auth/:platform/callback", oauthHandler.Callback)

	api := router.Group("api")
	api.Use(middleware.Auth(userRepository))

	api.GET("/connections/:platform/status", oauthHandler.Status)
	api.POST("/connections/:platform/disconnect", oauthHandler.Disconnect)

	api.POST("/events/:eventId/sync", syncHandler.Trigger)
	api.GET("/events/:eventId/sync", syncHandler.Status)
	api.POST("/sync/process-jobs", syncHandler.ProcessJobs)

	return router
}
