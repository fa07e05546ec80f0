package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stationagent/internal/dto"
)

// StatusProvider reports the agent's runtime state.
type StatusProvider interface {
	Status() dto.StatusResponse
}

// HealthHandler reports that the ops server is up.
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// StatusHandler returns the active device, poller cache, live rate and task states.
func StatusHandler(status StatusProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, status.Status())
	}
}
