package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/academic-service/internal/cache"
	"github.com/SAP-F-2025/academic-service/internal/config"
	"github.com/SAP-F-2025/academic-service/internal/events"
	"github.com/SAP-F-2025/academic-service/internal/handlers"
	"github.com/SAP-F-2025/academic-service/internal/observability"
	"github.com/SAP-F-2025/academic-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/academic-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/academic-service/internal/services"
	"github.com/SAP-F-2025/academic-service/internal/utils"
	"github.com/SAP-F-2025/academic-service/internal/validator"
	"github.com/SAP-F-2025/academic-service/pkg"
)

const sweepLockKey = "academic:sync:lock"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache and sweep lock", "error", err)
			redisClient = nil
		}
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Initialize identity provider gateway
	logger.Info("Identity provider endpoint resolved",
		"configured", cfg.Casdoor.Endpoint,
		"resolved", cfg.Casdoor.ResolvedEndpoint)
	identity := casdoor.NewIdentityCasdoor(cfg.Casdoor.GatewayConfig(), metrics, slogLogger)

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		Identity:    identity,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Initialize event publisher
	var publisher events.EventPublisher
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic, slogLogger)
		if err != nil {
			log.Fatalf("Failed to initialize event publisher: %v", err)
		}
		publisher = kafkaPublisher
	} else {
		logger.Info("No Kafka brokers configured, publishing events in memory")
		publisher, _ = events.NewInMemoryPublisher(cfg.Events.Topic, slogLogger)
	}

	// Initialize services
	serviceManager := services.NewServiceManager(services.ServiceDependencies{
		Repo:      repoManager.GetRepository(),
		Validator: validator.New(),
		Publisher: publisher,
		Metrics:   metrics,
		SweepLock: cache.NewDistributedLock(redisClient, sweepLockKey, cfg.SyncLockTTL),
		Logger:    slogLogger,
	}, services.ServiceManagerConfig{
		SyncSchedule: cfg.SyncSchedule,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	serviceManager.Scheduler().Start()

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, repoManager, metrics.Handler(), logger, cfg.Casdoor)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, cfg.CORSOrigins)
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Stops the scheduler and closes the publisher
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	// Closes the database and Redis connections
	if err := repoManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown repositories", "error", err)
	}

	logger.Info("Server exited")
}
