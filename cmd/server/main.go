// Package main runs the live webinar HTTP server with the realtime hub and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/live/config"
	"github.com/aura-webinar/live/internal/access"
	"github.com/aura-webinar/live/internal/auth"
	"github.com/aura-webinar/live/internal/live"
	"github.com/aura-webinar/live/internal/metrics"
	"github.com/aura-webinar/live/internal/middleware"
	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/internal/overlays"
	"github.com/aura-webinar/live/internal/polls"
	"github.com/aura-webinar/live/internal/presence"
	"github.com/aura-webinar/live/internal/questions"
	"github.com/aura-webinar/live/internal/realtime"
	"github.com/aura-webinar/live/internal/registrations"
	"github.com/aura-webinar/live/internal/relay"
	"github.com/aura-webinar/live/internal/streams"
	"github.com/aura-webinar/live/internal/subscriptions"
	"github.com/aura-webinar/live/internal/webinars"
	"github.com/aura-webinar/live/internal/worker"
	"github.com/aura-webinar/live/pkg/database"
	"github.com/aura-webinar/live/pkg/queue"
	"github.com/aura-webinar/live/pkg/redis"
	"github.com/aura-webinar/live/pkg/response"
	"github.com/aura-webinar/live/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := auth.RegisterValidators(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}
	metrics.InitMetrics()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			OverlayBucket:        cfg.AWS.OverlayBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Realtime: hub, optional Redis backplane, group router
	var hub *realtime.Hub
	if cfg.Realtime.Backplane == "redis" {
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
		logger.Info("realtime backplane enabled", zap.String("backplane", cfg.Realtime.Backplane))
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}
	groupRouter := realtime.NewRouter(hub)

	// Presence
	presenceRepo := presence.NewRepository(pool)
	registry := presence.NewRegistry(presenceRepo, groupRouter, logger)
	stale, err := registry.ClearStale(ctx)
	if err != nil {
		logger.Fatal("clear stale participants", zap.Error(err))
	}
	logger.Info("cleared stale participants", zap.Int64("count", stale))

	// Stream stats (peaks per live session)
	streamRepo := streams.NewRepository(pool)
	tracker := streams.NewTracker(streamRepo, logger)
	if n, err := tracker.Restore(ctx); err != nil {
		logger.Warn("restore stream sessions", zap.Error(err))
	} else {
		logger.Info("stream sessions restored", zap.Int("open", n))
	}
	registry.OnCounts(metrics.ObserveCounts)
	registry.OnCounts(tracker.ObserveCounts)
	streamHandler := streams.NewHandler(tracker, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.SessionExpireHours, cfg.JWT.BroadcastExpireHours)

	// Webinars
	webinarRepo := webinars.NewRepository(pool)
	webinarSvc := webinars.NewService(webinarRepo, registry, cfg.Access.Window(), logger)
	webinarSvc.OnStatusChange(tracker.OnStatusChange)
	webinarHandler := webinars.NewHandler(webinarSvc, logger)

	// Auth and users
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, registry, webinarRepo, jwtService,
		cfg.Auth.BootstrapAdminMobile, cfg.Auth.ForceLogoutLocation, logger)
	authHandler := auth.NewHandler(authSvc, logger)

	// Subscriptions and registrations
	subscriptionRepo := subscriptions.NewRepository(pool)
	subscriptionHandler := subscriptions.NewHandler(subscriptionRepo, logger)
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, webinarRepo, subscriptionRepo, database.IsUniqueViolation, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, logger)

	// Access window; grants are audited through the job queue
	jobQueue := queue.NewQueue(rdb.Client, logger)
	accessRepo := access.NewRepository(pool)
	accessSvc := access.NewService(webinarRepo, authRepo, registrationRepo, subscriptionRepo,
		access.NewQueueSink(jobQueue), cfg.Access.Window(), logger)
	accessHandler := access.NewHandler(accessSvc, accessRepo, logger)
	auditProcessor := worker.NewAccessAuditProcessor(accessRepo, jobQueue, logger)

	// Chat and overlay relay
	relaySvc := relay.NewService(registry, jwtService, groupRouter, logger)
	relayHandler := relay.NewHandler(relaySvc, logger)

	// Polls and questions
	pollSvc := polls.NewService(polls.NewRepository(pool), webinarRepo, groupRouter, logger)
	pollHandler := polls.NewHandler(pollSvc, logger)
	questionSvc := questions.NewService(questions.NewRepository(pool), webinarRepo, groupRouter, logger)
	questionHandler := questions.NewHandler(questionSvc, logger)

	// Hub endpoint
	liveHandler := live.NewHandler(hub, registry, webinarRepo, jwtService, relaySvc, groupRouter, realtime.Options{
		PingInterval:    cfg.Realtime.PingInterval,
		PongWait:        cfg.Realtime.PongWait,
		SendBuffer:      cfg.Realtime.SendBuffer,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
	}, logger)

	loginLimiter := middleware.NewIPRateLimiter(cfg.RateLimit.LoginPerSecond, cfg.RateLimit.LoginBurst)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", metrics.Handler())

	// Public
	router.POST("/login-viewer", middleware.RateLimit(loginLimiter), authHandler.LoginViewer)
	router.POST("/login-admin", middleware.RateLimit(loginLimiter), authHandler.LoginAdmin)
	router.POST("/overlay/:webinarId", relayHandler.BroadcastOverlay)
	router.GET("/webinar/access/:webinarId", accessHandler.Check)
	router.GET("/webinar/dashboard/:userId", accessHandler.Dashboard)

	// WebSocket hub (identity in query; host role needs access_token)
	router.GET("/hub", liveHandler.ServeWs)

	// Protected API (session token required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/users/me", authHandler.Me)
		api.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.List)
		api.PATCH("/users/:id/role", middleware.RequireRole(models.RoleAdmin), authHandler.SetRole)
		api.PATCH("/users/:id/deactivate", middleware.RequireRole(models.RoleAdmin), authHandler.Deactivate)
		api.POST("/auth/broadcast-token/:webinarId", middleware.RequireStaff(), authHandler.BroadcastToken)

		// Webinars
		api.GET("/webinars", webinarHandler.ListUpcoming)
		api.GET("/webinars/hosted", middleware.RequireStaff(), webinarHandler.ListHosted)
		api.POST("/webinars", middleware.RequireStaff(), webinarHandler.Create)
		api.GET("/webinars/:id", webinarHandler.GetByID)
		api.PATCH("/webinars/:id", middleware.RequireStaff(), webinarHandler.Update)
		api.POST("/webinars/:id/status", middleware.RequireStaff(), webinarHandler.SetStatus)
		api.GET("/webinars/:id/counts", webinarHandler.Counts)
		api.GET("/webinars/:id/sessions", middleware.RequireStaff(), streamHandler.ListSessions)
		api.GET("/webinars/:id/access-log", middleware.RequireStaff(), accessHandler.AccessLog)

		// Registrations
		api.POST("/webinars/:id/register", registrationHandler.Register)
		api.DELETE("/webinars/:id/register", registrationHandler.Cancel)
		api.GET("/registrations", registrationHandler.ListMine)

		// Subscriptions
		api.GET("/subscriptions", subscriptionHandler.ListMine)
		api.GET("/subscriptions/current", subscriptionHandler.Current)
		api.POST("/subscriptions", middleware.RequireRole(models.RoleAdmin), subscriptionHandler.Grant)
		api.PATCH("/subscriptions/:id/deactivate", middleware.RequireRole(models.RoleAdmin), subscriptionHandler.Deactivate)

		// Questions
		api.POST("/webinars/:id/questions", questionHandler.Create)
		api.GET("/webinars/:id/questions", questionHandler.ListByWebinar)
		api.PATCH("/questions/:id/approve", middleware.RequireStaff(), questionHandler.Approve)
		api.PATCH("/questions/:id/answer", middleware.RequireStaff(), questionHandler.Answer)

		// Polls
		api.POST("/webinars/:id/polls", middleware.RequireStaff(), pollHandler.Create)
		api.GET("/webinars/:id/polls", pollHandler.List)
		api.POST("/polls/:id/launch", middleware.RequireStaff(), pollHandler.Launch)
		api.POST("/polls/:id/close", middleware.RequireStaff(), pollHandler.Close)
		api.POST("/polls/:id/answer", pollHandler.Answer)
		api.GET("/polls/:id/results", pollHandler.Results)

		// Overlay assets (S3)
		if s3Client != nil {
			overlayHandler := overlays.NewHandler(overlays.NewService(s3Client, webinarRepo, relaySvc, logger), logger)
			api.POST("/webinars/:id/overlays/presign", middleware.RequireStaff(), overlayHandler.Presign)
			api.POST("/webinars/:id/overlays", middleware.RequireStaff(), overlayHandler.Upload)
			api.POST("/webinars/:id/overlays/show", middleware.RequireStaff(), overlayHandler.Show)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (access audit rows)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go auditProcessor.Run(workerCtx)
	logger.Info("access audit worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
