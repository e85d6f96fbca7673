package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/maintenance-sync/internal/auth"
	"github.com/yourorg/maintenance-sync/internal/client"
	"github.com/yourorg/maintenance-sync/internal/config"
	"github.com/yourorg/maintenance-sync/internal/event"
	"github.com/yourorg/maintenance-sync/internal/handler"
	"github.com/yourorg/maintenance-sync/internal/middleware"
	"github.com/yourorg/maintenance-sync/internal/schedule"
	"github.com/yourorg/maintenance-sync/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Kafka publisher (if enabled)
	var publisher *event.Publisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		publisher = event.NewPublisher(cfg.Kafka.Brokers, "maintenance-sync", cfg.Kafka.Topics, logger)
		logger.Info("Initialized Kafka publisher", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	// Create collaborator clients
	recordsClient := client.NewRecordsClient(
		cfg.RecordsService.URL,
		cfg.RecordsService.ServiceKey,
		cfg.RecordsService.Timeout,
		logger,
	)
	notificationClient := client.NewNotificationClient(
		cfg.NotificationService.URL,
		cfg.NotificationService.ServiceKey,
		cfg.NotificationService.Timeout,
		logger,
	)

	// Create services
	authService := auth.NewService(cfg.Auth.JWTSecret)
	policy := schedule.Policy{
		UpcomingDaysWindow: cfg.Policy.UpcomingDaysWindow,
		UpcomingKmWindow:   cfg.Policy.UpcomingKmWindow,
		DueWeight:          cfg.Policy.DueWeight,
		UpcomingWeight:     cfg.Policy.UpcomingWeight,
	}
	scheduleService := schedule.NewService(recordsClient, publisher, policy, logger)
	sessionManager := session.NewManager(cfg.Realtime, authService, notificationClient, logger)

	// Create HTTP server
	router := setupRouter(scheduleService, sessionManager, authService, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close Kafka publisher if initialized
	if publisher != nil {
		publisher.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func setupRouter(
	scheduleService *schedule.Service,
	sessionManager *session.Manager,
	authService *auth.Service,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(authService, logger))
	{
		scheduleHandler := handler.NewScheduleHandler(scheduleService, logger)
		notifHandler := handler.NewNotificationHandler(sessionManager, logger)

		// Session lifecycle
		v1.POST("/session", notifHandler.Login)
		v1.DELETE("/session", notifHandler.Logout)
		v1.POST("/session/reconnect", notifHandler.Reconnect)

		// Maintenance schedule routes
		v1.GET("/vehicles/:id/schedule", scheduleHandler.GetVehicleSchedule)
		v1.POST("/vehicles/:id/maintenance", scheduleHandler.RecordCompleted)
		v1.PUT("/vehicles/:id/maintenance/:typeId/config", scheduleHandler.Reconfigure)
		v1.POST("/fleet/schedule", scheduleHandler.EvaluateFleet)

		// Notification routes
		v1.GET("/notifications", notifHandler.GetNotifications)
		v1.GET("/notifications/count", notifHandler.GetUnreadCount)
		v1.PUT("/notifications/:id/read", notifHandler.MarkNotificationAsRead)
		v1.PUT("/notifications/read-all", notifHandler.MarkAllAsRead)
	}

	return router
}
