// Package main runs the meetup HTTP API with the live notification feed and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetapp/backend/config"
	"github.com/meetapp/backend/internal/auth"
	"github.com/meetapp/backend/internal/emaillogs"
	"github.com/meetapp/backend/internal/enrollments"
	"github.com/meetapp/backend/internal/meetups"
	"github.com/meetapp/backend/internal/middleware"
	"github.com/meetapp/backend/internal/notifications"
	"github.com/meetapp/backend/internal/realtime"
	"github.com/meetapp/backend/pkg/database"
	"github.com/meetapp/backend/pkg/queue"
	"github.com/meetapp/backend/pkg/redis"
	"github.com/meetapp/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	defer hub.Close()

	// Users and sessions
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, jwtService, logger)

	// Meetups
	meetupRepo := meetups.NewRepository(pool)
	meetupHandler := meetups.NewHandler(meetupRepo, nil, logger)

	// Notifications (persisted in the enrollment transaction, pushed through the hub)
	notificationRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewDispatcher(notificationRepo, hub, logger)
	notificationHandler := notifications.NewHandler(notificationRepo, logger)

	// Enrollments
	jobQueue := queue.NewQueue(rdb.Client, logger)
	mailProducer := enrollments.NewMailProducer(jobQueue, cfg.Worker.MailBuffer, cfg.Worker.EnqueueTimeout, logger)
	enrollmentRepo := enrollments.NewRepository(pool)
	enrollmentService := enrollments.NewService(userRepo, meetupRepo, enrollmentRepo, dispatcher, mailProducer, nil, logger)
	enrollmentHandler := enrollments.NewHandler(enrollmentService, logger)

	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	router.POST("/users", authHandler.Register)
	router.POST("/sessions", authHandler.Login)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.PUT("/users", authHandler.Update)

		api.GET("/meetups", meetupHandler.Index)
		api.POST("/meetups", meetupHandler.Store)
		api.PUT("/meetups/:id", meetups.RequireOrganizer(meetupRepo, logger), meetupHandler.Update)
		api.DELETE("/meetups/:id", meetups.RequireOrganizer(meetupRepo, logger), meetupHandler.Delete)

		api.GET("/enrolls", enrollmentHandler.Index)
		api.POST("/enrolls/:meetupId", enrollmentHandler.Store)

		api.GET("/notifications", notificationHandler.List)
		api.PUT("/notifications/:id", notificationHandler.MarkRead)

		api.GET("/emails", emailLogsHandler.ListMine)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeNotifications(hub, jwtService, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background enqueue of confirmation e-mails
	producerCtx, producerCancel := context.WithCancel(context.Background())
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		mailProducer.Run(producerCtx)
	}()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// Requests are done; flush jobs they submitted.
	producerCancel()
	select {
	case <-producerDone:
	case <-shutdownCtx.Done():
		logger.Warn("mail producer did not drain before shutdown deadline")
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
