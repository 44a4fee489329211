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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/scorito-sim/internal/api/handlers"
	"github.com/stitts-dev/scorito-sim/internal/api/middleware"
	"github.com/stitts-dev/scorito-sim/internal/cache"
	"github.com/stitts-dev/scorito-sim/internal/websocket"
	"github.com/stitts-dev/scorito-sim/pkg/config"
	"github.com/stitts-dev/scorito-sim/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger with service context
	structuredLogger := logger.InitLogger("info", cfg.IsDevelopment())
	logger.WithService("scorito-sim").WithFields(logrus.Fields{
		"version":     "1.0.0",
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting Scorito Simulation Service")

	// Setup Gin mode
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to Redis. The cache is optional: when Redis is not
	// reachable the service runs without caching instead of failing.
	var redisClient *redis.Client
	if opt, err := redis.ParseURL(cfg.RedisURL); err == nil {
		client := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.WithService("scorito-sim").WithError(err).Warn("Redis unavailable, caching disabled")
			client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
		}
		cancel()
	} else {
		logger.WithService("scorito-sim").WithError(err).Warn("Invalid Redis URL, caching disabled")
	}

	// Initialize cache service for aggregation reports
	cacheService := cache.NewReportCacheService(redisClient, structuredLogger)

	// Initialize WebSocket hub for progress updates
	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run()

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// Initialize handlers
	scoritoHandler := handlers.NewScoritoHandler(cacheService, wsHub, cfg, structuredLogger)
	drawsHandler := handlers.NewDrawsHandler(cacheService, cfg, structuredLogger)
	healthHandler := handlers.NewHealthHandler(cacheService, wsHub, structuredLogger)

	// Setup API routes
	apiV1 := router.Group("/api/v1")
	{
		// Scorito aggregation endpoints
		apiV1.POST("/scorito/optimize", scoritoHandler.Optimize)
		apiV1.GET("/scorito/scoring-rules", scoritoHandler.GetScoringRules)
		apiV1.POST("/scorito/score", scoritoHandler.Score)
		apiV1.GET("/scorito/cache-status", scoritoHandler.GetCacheStatus)

		// Draw analysis endpoints
		apiV1.POST("/draws/probabilities", drawsHandler.Probabilities)
	}

	// WebSocket endpoint for progress updates
	router.GET("/ws/simulations/:id", wsHub.HandleWebSocket)

	// Health check endpoints
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.GET("/metrics", healthHandler.GetMetrics)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.WithService("scorito-sim").WithField("port", cfg.Port).Info("Scorito simulation service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService("scorito-sim").Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithService("scorito-sim").Info("Shutting down scorito simulation service...")

	// The server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithService("scorito-sim").Fatalf("Scorito simulation service forced to shutdown: %v", err)
	}

	logger.WithService("scorito-sim").Info("Scorito simulation service exited")
}
