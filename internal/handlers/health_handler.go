package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/academic-service/internal/utils"
)

const serviceName = "academic-service"

// HealthChecker is satisfied by the repository and service managers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProviderProbe reports whether the identity provider answers.
type ProviderProbe interface {
	IsProviderReachable(ctx context.Context) bool
}

type HealthHandler struct {
	BaseHandler
	checker HealthChecker
	probe   ProviderProbe
	timeout time.Duration
}

func NewHealthHandler(checker HealthChecker, probe ProviderProbe, logger utils.Logger) *HealthHandler {
	return &HealthHandler{
		BaseHandler: NewBaseHandler(logger),
		checker:     checker,
		probe:       probe,
		timeout:     5 * time.Second,
	}
}

// Health checks the database and cache connections.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.checker.HealthCheck(ctx); err != nil {
		h.LogError(c, err, "Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"service":   serviceName,
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// IdentityProvider answers 200 UP or 503 DOWN.
func (h *HealthHandler) IdentityProvider(c *gin.Context) {
	if h.probe.IsProviderReachable(c.Request.Context()) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
}
