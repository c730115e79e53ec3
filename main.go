package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-sync/domain/repository"
	"event-sync/infrastructure/cache"
	"event-sync/infrastructure/configuration"
	"event-sync/infrastructure/crypto"
	"event-sync/infrastructure/logger"
	"event-sync/infrastructure/media"
	"event-sync/infrastructure/persistence"
	"event-sync/infrastructure/platform"
	"event-sync/infrastructure/platform/facebook"
	googleadapter "event-sync/infrastructure/platform/google"
	"event-sync/infrastructure/pubsub"
	"event-sync/infrastructure/servicebus"
	httpHandler "event-sync/interfaces/http"
	"event-sync/server"
	"event-sync/usecase"

	"golang.org/x/sync/errgroup"
)

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Env files are non-destructive; OS env has precedence.
	configuration.LoadEnvFromFile("config.env", ".env")
	conf := configuration.C

	psqlDb, err := persistence.NewPostgresDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("PostgreSQL initialization failed")
	}
	if err := persistence.EnsureSyncSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring sync schema")
	}

	cipher, err := crypto.NewTokenCipher(conf.Sync.TokenCipherKey)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Token cipher initialization failed")
	}

	// Credential store: MSSQL in production, PostgreSQL otherwise, mirroring
	// the rest of the persistence wiring.
	var connRepo repository.IPlatformConnection
	if os.Getenv("ENV") == "prod" && conf.Database.Mssql.Host != "" {
		mssqlDb, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Fatal("MSSQL initialization failed")
		}
		connRepo = persistence.NewConnectionRepositoryMSSQL(mssqlDb, cipher)
	} else {
		connRepo = persistence.NewConnectionRepository(psqlDb, cipher)
	}

	eventRepo := persistence.NewEventRepository(psqlDb)
	userRepo := persistence.NewUserRepository(psqlDb)
	jobRepo := persistence.NewSyncJobRepository(psqlDb)

	var auditRepo repository.ISyncAudit
	if conf.Database.MySql.Host != "" {
		auditDb, err := persistence.NewAuditDb()
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Audit DB not available - continuing without audit trail")
		} else {
			auditRepo = persistence.NewSyncAuditRepository(auditDb)
		}
	}

	var history usecase.ISyncHistory
	mongoDb, err := persistence.NewMongoDb(
		conf.Database.Mongo.Host,
		conf.Database.Mongo.Port,
		conf.Database.Mongo.User,
		conf.Database.Mongo.Password,
		conf.Database.Mongo.Name,
	)
	if err != nil || mongoDb.Ping(ctx, nil) != nil {
		logger.GetLogger().Warn("MongoDB not available - continuing without run history")
	} else {
		history = persistence.NewSyncHistoryRepository(mongoDb, conf.Database.Mongo.Name)
	}

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", conf.RedisClient.Host, conf.RedisClient.Port),
		conf.RedisClient.Username,
		conf.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Redis is required for per-event sync locks")
	}
	locker := cache.NewEventLock(redisClient)

	var notifier usecase.ISyncNotifier
	if conf.Pubsub.ProjectID != "" {
		pubSubClient, err := pubsub.NewPubSub(ctx, conf.Pubsub.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - continuing without sync notifications")
		} else {
			notifier = pubsub.NewSyncNotifier(pubSubClient, conf.Pubsub.Topic)
		}
	}

	signer := media.NewURLSigner(
		conf.Media.BaseURL,
		conf.Media.SigningSecret,
		time.Duration(conf.Media.URLTTLMinutes)*time.Minute,
	)

	registry := platform.NewRegistry(
		facebook.New(conf.OAuth.Facebook, conf.App.SecretKey, connRepo, signer),
		googleadapter.New(conf.OAuth.Google, conf.App.SecretKey, connRepo, signer),
	)
	logger.GetLogger().WithField("platforms", registry.Keys()).Info("Platform registry initialized")

	syncUC := usecase.NewSyncUsecase(
		eventRepo, userRepo, connRepo, jobRepo, auditRepo,
		registry, locker, notifier, history, conf.Sync,
	)

	oauthHandler := httpHandler.NewOAuthHandler(registry, connRepo)
	syncHandler := httpHandler.NewSyncHandler(syncUC, eventRepo)
	router := server.InitiateRouter(oauthHandler, syncHandler, userRepo)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.App.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.GetLogger().WithField("port", conf.App.Port).Info("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Sync worker pool: each worker drains due jobs on a short poll interval.
	for i := 0; i < conf.Sync.Workers; i++ {
		worker := i
		g.Go(func() error {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			logger.GetLogger().WithField("worker", worker).Info("Sync worker started")
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := syncUC.ProcessDueJobs(ctx, conf.Sync.BatchSize); err != nil {
						logger.GetLogger().WithFields(map[string]interface{}{
							"worker": worker,
							"error":  err,
						}).Error("Processing sync jobs failed")
					}
				}
			}
		})
	}

	// Optional dispatch source: other services enqueue runs via Service Bus.
	if conf.ServiceBus.Namespace != "" {
		sbClient, err := servicebus.NewServiceBus(ctx, conf.ServiceBus.Namespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without dispatch queue")
		} else {
			receiver := servicebus.NewSyncDispatchReceiver(sbClient, conf.ServiceBus.Queue, syncUC)
			g.Go(func() error { return receiver.Run(ctx) })
		}
	}

	g.Go(func() error {
		select {
		case sig := <-interrupt:
			logger.GetLogger().WithField("signal", sig.String()).Info("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server terminated")
	}
}
