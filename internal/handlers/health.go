package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the unauthenticated liveness probe
type HealthHandler struct {
	service   string
	version   string
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service, version string) *HealthHandler {
	return &HealthHandler{service: service, version: version, startedAt: time.Now()}
}

// Check reports liveness only; it never touches the store or tool servers
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        h.service,
		"version":        h.version,
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
