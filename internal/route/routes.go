package route

import (
	"github.com/gin-gonic/gin"

	"stationagent/internal/config"
	"stationagent/internal/handler"
	"stationagent/internal/logger"
	"stationagent/internal/metrics"
	"stationagent/internal/middleware"
	"stationagent/internal/repository"
	wshub "stationagent/internal/service/websocket"
)

// Deps are the collaborators the ops server exposes.
type Deps struct {
	Status   handler.StatusProvider
	Capture  handler.CaptureTrigger
	Captures repository.CaptureRepository
	Pending  handler.PendingCounter
	Hub      *wshub.HubService
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

// SetupRoutes registers the ops API, metrics, live preview and log endpoints
// behind the token middleware.
func SetupRoutes(cfg config.StatusConfig, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger), middleware.AuthMiddleware(cfg.Token))

	// API endpoints
	api := r.Group("/api")
	api.GET("/health", handler.HealthHandler())
	api.GET("/status", handler.StatusHandler(deps.Status))
	api.POST("/capture", handler.TriggerCaptureHandler(deps.Capture, deps.Logger))
	api.GET("/captures", handler.GetCapturesHandler(deps.Captures, deps.Pending, deps.Logger))
	api.GET("/captures/stats", handler.CaptureStatsHandler(deps.Captures, deps.Logger))

	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	r.GET("/ws", handler.ViewWebsocketHandler(deps.Hub, deps.Logger))

	// Log endpoints
	r.GET("/logs/:level", handler.ShowLogsHandler(deps.Logger))
	r.POST("/logs/:level/clear", handler.ClearLogsHandler(deps.Logger))

	return r
}
