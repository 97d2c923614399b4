package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tanmiacare/go-notification-engine/internal/analytics"
	"github.com/tanmiacare/go-notification-engine/internal/builder"
	"github.com/tanmiacare/go-notification-engine/internal/consumer"
	"github.com/tanmiacare/go-notification-engine/internal/dispatcher"
	"github.com/tanmiacare/go-notification-engine/internal/handler"
	"github.com/tanmiacare/go-notification-engine/internal/middleware"
	"github.com/tanmiacare/go-notification-engine/internal/preference"
	"github.com/tanmiacare/go-notification-engine/internal/realtime"
	"github.com/tanmiacare/go-notification-engine/internal/repository"
	"github.com/tanmiacare/go-notification-engine/internal/scheduler"
	"github.com/tanmiacare/go-notification-engine/internal/sender"
	"github.com/tanmiacare/go-notification-engine/internal/service"
	"github.com/tanmiacare/go-notification-engine/internal/shared/config"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
	"github.com/tanmiacare/go-notification-engine/internal/shared/mongodb"
	"github.com/tanmiacare/go-notification-engine/internal/shared/rabbitmq"
	"github.com/tanmiacare/go-notification-engine/internal/shared/redis"
	"github.com/tanmiacare/go-notification-engine/internal/tracker"
)

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting Notification Engine...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize RabbitMQ
	rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer rabbitMQClient.Close()

	// Initialize Redis for cross-instance realtime fan-out
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error("Redis unavailable, realtime fan-out stays local", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	// Initialize repositories
	notificationRepo := repository.NewNotificationRepository(mongoClient)
	attemptRepo := repository.NewAttemptRepository(mongoClient)
	reminderJobRepo := repository.NewReminderJobRepository(mongoClient)
	preferencesRepo := repository.NewPreferencesRepository(mongoClient)
	analyticsRepo := repository.NewAnalyticsRepository(mongoClient)
	contactRepo := repository.NewContactRepository(mongoClient)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	ensureIndexes(indexCtx, log,
		notificationRepo.EnsureIndexes,
		attemptRepo.EnsureIndexes,
		reminderJobRepo.EnsureIndexes,
		preferencesRepo.EnsureIndexes,
		analyticsRepo.EnsureIndexes,
		contactRepo.EnsureIndexes,
	)
	cancelIndexes()

	// Initialize channel senders
	senders := sender.NewRegistry(
		sender.NewInAppSender(),
		sender.NewEmailSender(sender.EmailConfig{
			SMTPHost:     cfg.SMTP.Host,
			SMTPPort:     cfg.SMTP.Port,
			SMTPUsername: cfg.SMTP.Username,
			SMTPPassword: cfg.SMTP.Password,
			FromEmail:    cfg.SMTP.FromEmail,
			FromName:     cfg.SMTP.FromName,
		}),
		sender.NewSMSSender(sender.GatewayConfig{
			URL:      cfg.SMS.GatewayURL,
			APIKey:   cfg.SMS.APIKey,
			SenderID: cfg.SMS.SenderID,
		}),
		sender.NewWhatsAppSender(sender.GatewayConfig{
			URL:      cfg.SMS.GatewayURL,
			APIKey:   cfg.SMS.APIKey,
			SenderID: cfg.SMS.SenderID,
		}),
		sender.NewPushSender(sender.GatewayConfig{
			URL:     cfg.Push.GatewayURL,
			APIKey:  cfg.Push.APIKey,
			Timeout: cfg.Push.Timeout,
		}),
	)

	// Initialize delivery tracking and its event consumers
	deliveryTracker := tracker.NewTracker(notificationRepo, attemptRepo, log)
	defer deliveryTracker.Close()

	hub := realtime.NewHub(log)
	notifier := realtime.NewRedisNotifier(hub, redisClient, log)
	defer notifier.Close()

	aggregator := analytics.NewAggregator(analyticsRepo, log)
	deliveryTracker.Register(notifier.Consume)
	deliveryTracker.Register(aggregator.Consume)

	// Initialize dispatcher
	resolver := preference.NewResolver(preferencesRepo)
	dispatch := dispatcher.NewDispatcher(
		cfg.Dispatcher, resolver, deliveryTracker, senders,
		contactRepo, notificationRepo, log,
	)
	dispatch.Start()
	defer dispatch.Stop()

	// Initialize services
	notificationService := service.NewNotificationService(
		notificationRepo, attemptRepo, builder.NewBuilder(), dispatch, deliveryTracker, log,
	)

	// Initialize reminder scheduler
	instanceID := fmt.Sprintf("notification-engine-%s", uuid.NewString()[:8])
	reminderScheduler := scheduler.NewScheduler(
		cfg.Scheduler, reminderJobRepo, builder.NewBuilder(), notificationService, instanceID, log,
	)
	if err := reminderScheduler.Start(); err != nil {
		log.Fatal("Failed to start reminder scheduler", "error", err)
	}
	defer reminderScheduler.Stop()

	// Initialize HTTP handlers
	notificationHandler := handler.NewNotificationHandler(notificationService, log)
	reminderHandler := handler.NewReminderHandler(reminderScheduler, log)
	preferencesHandler := handler.NewPreferencesHandler(preferencesRepo, log)
	streamHandler := handler.NewStreamHandler(notifier, log)
	healthHandler := handler.NewHealthHandler(dispatch, aggregator, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewUserRateLimiter(cfg.RateLimit.PerUser, cfg.RateLimit.Burst)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/health/system", healthHandler.System)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with rate limiting
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		// Notifications
		notifications := v1.Group("/notifications")
		{
			notifications.POST("", notificationHandler.Create)
			notifications.GET("/:id", notificationHandler.Get)
			notifications.GET("/:id/attempts", notificationHandler.Attempts)
			notifications.POST("/:id/cancel", notificationHandler.Cancel)
		}

		// Per-user views
		users := v1.Group("/users/:user_id")
		{
			users.GET("/notifications", notificationHandler.List)
			users.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			users.GET("/notifications/stream", streamHandler.Stream)
			users.POST("/notifications/read", notificationHandler.BulkMarkRead)
			users.POST("/notifications/:id/read", notificationHandler.MarkRead)
			users.GET("/preferences", preferencesHandler.List)
			users.PUT("/preferences", preferencesHandler.Upsert)
		}

		// Entity reminder schedules
		entities := v1.Group("/entities/:entity_id")
		{
			entities.POST("/reminders", reminderHandler.Schedule)
			entities.PUT("/reminders", reminderHandler.Reschedule)
			entities.DELETE("/reminders", reminderHandler.Cancel)
			entities.POST("/reminders/send", reminderHandler.SendManual)
		}

		// Delivery analytics
		v1.GET("/analytics/report", healthHandler.Report)
	}

	// Start RabbitMQ consumer
	eventConsumer := consumer.NewEventConsumer(
		consumer.NewAMQPSource(rabbitMQClient),
		reminderScheduler, builder.NewBuilder(), notificationService, log,
	)
	if err := eventConsumer.Start(); err != nil {
		log.Error("Failed to start event consumer", "error", err)
	}
	defer eventConsumer.Stop()

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Notification Engine started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Notification Engine...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
}

func ensureIndexes(ctx context.Context, log *logger.Logger, fns ...func(context.Context) error) {
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			log.Error("Failed to ensure indexes", "error", err)
		}
	}
}
