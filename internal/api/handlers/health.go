package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/scorito-sim/internal/cache"
	"github.com/stitts-dev/scorito-sim/internal/types"
	"github.com/stitts-dev/scorito-sim/internal/websocket"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cache  *cache.ReportCacheService
	wsHub  *websocket.Hub
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cache *cache.ReportCacheService, wsHub *websocket.Hub, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		cache:  cache,
		wsHub:  wsHub,
		logger: logger,
	}
}

// GetHealth returns the liveness status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthStatus{
		Status:    "healthy",
		Service:   "scorito-sim",
		Timestamp: time.Now(),
	})
}

// GetReady returns the readiness status including cache connectivity
func (h *HealthHandler) GetReady(c *gin.Context) {
	checks := make(map[string]string)
	status := "ready"
	httpStatus := http.StatusOK

	if h.cache.Enabled() {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			checks["redis"] = err.Error()
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	c.JSON(httpStatus, types.HealthStatus{
		Status:    status,
		Service:   "scorito-sim",
		Timestamp: time.Now(),
		Checks:    checks,
	})
}

// GetMetrics returns basic runtime metrics
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"service":           "scorito-sim",
		"timestamp":         time.Now(),
		"goroutines":        runtime.NumGoroutine(),
		"memory_alloc_mb":   mem.Alloc / 1024 / 1024,
		"websocket_clients": h.wsHub.GetConnectionCount(),
	})
}
