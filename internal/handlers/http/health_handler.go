package http

import (
	"net/http"
	"time"

	"relaycast/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	directory ports.DirectoryService
	startTime time.Time
	version   string
}

func NewHealthHandler(directory ports.DirectoryService, version string) *HealthHandler {
	return &HealthHandler{
		directory: directory,
		startTime: time.Now(),
		version:   version,
	}
}

func (h *HealthHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	directoryStatus := "ok"
	if _, err := h.directory.List(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		directoryStatus = err.Error()
	}

	c.JSON(status, gin.H{
		"status":    healthWord(status),
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
		"directory": directoryStatus,
	})
}

func healthWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}
