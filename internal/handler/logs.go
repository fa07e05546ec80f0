package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"stationagent/internal/logger"
)

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// ShowLogsHandler serves the log file for :level as text/plain.
func ShowLogsHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, ok := logFiles[c.Param("level")]
		if !ok {
			c.String(http.StatusNotFound, "Unknown log level: %s", c.Param("level"))
			return
		}

		filePath := filepath.Join(log.Directory(), filename)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			c.String(http.StatusNotFound, "Log file not found: %s", filename)
			return
		}

		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.File(filePath)
	}
}

// ClearLogsHandler truncates the log file for :level.
func ClearLogsHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, ok := logFiles[c.Param("level")]
		if !ok {
			c.String(http.StatusNotFound, "Unknown log level: %s", c.Param("level"))
			return
		}
		if err := log.CleanLogs(filename); err != nil {
			log.Error("Failed to clear %s: %v", filename, err)
			c.String(http.StatusInternalServerError, "Failed to clear %s", filename)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
