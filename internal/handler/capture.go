package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stationagent/internal/dto"
	"stationagent/internal/logger"
	"stationagent/internal/model"
	"stationagent/internal/repository"
	"stationagent/internal/service"
)

const defaultCaptureLimit = 50

// CaptureTrigger sends the active device's frame as a manual capture.
type CaptureTrigger interface {
	Trigger(ctx context.Context) (model.CaptureRecord, error)
}

// PendingCounter reports journal records not yet persisted.
type PendingCounter interface {
	Pending() int
}

// TriggerCaptureHandler sends a manual capture from the active device.
func TriggerCaptureHandler(trigger CaptureTrigger, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := trigger.Trigger(c.Request.Context())
		switch {
		case errors.Is(err, service.ErrNoActiveDevice), errors.Is(err, service.ErrNoFrame):
			c.JSON(http.StatusConflict, dto.CaptureResponse{DeviceID: rec.DeviceID, Error: err.Error()})
			return
		case err != nil:
			logger.Error("Manual capture failed: %v", err)
			c.JSON(http.StatusInternalServerError, dto.CaptureResponse{Error: err.Error()})
			return
		}

		resp := dto.CaptureResponse{
			Success:  rec.Success,
			DeviceID: rec.DeviceID,
			Station:  string(rec.Station),
			Error:    rec.Error,
		}
		status := http.StatusOK
		if !rec.Success {
			status = http.StatusBadGateway
		}
		c.JSON(status, resp)
	}
}

// GetCapturesHandler lists journal entries, newest first.
func GetCapturesHandler(repo repository.CaptureRepository, pending PendingCounter, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := &dto.CaptureFilter{
			Station: c.Query("station"),
			Manual:  parseBool(c.Query("manual")),
			After:   parseDate(c.Query("dateAfter")),
			Before:  parseDate(c.Query("dateBefore")),
			Limit:   atoiDefault(c.Query("limit"), defaultCaptureLimit),
		}
		if filter.Station != "" {
			if _, err := model.ParseStation(filter.Station); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		records, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying captures from database: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting captures: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		captures := make([]dto.CaptureInfo, 0, len(records))
		for _, r := range records {
			captures = append(captures, dto.CaptureInfo{
				ID:        r.ID,
				DeviceID:  r.DeviceID,
				Station:   string(r.Station),
				Manual:    r.Manual,
				Upload:    r.Upload,
				Success:   r.Success,
				Error:     r.Error,
				Bytes:     r.Bytes,
				Duration:  r.Duration,
				Timestamp: r.Timestamp,
			})
		}

		c.JSON(http.StatusOK, dto.CapturesData{
			Captures: captures,
			Length:   len(captures),
			Total:    total,
			Limit:    filter.Limit,
			Pending:  pending.Pending(),
		})
	}
}

// CaptureStatsHandler summarises the journal per station.
func CaptureStatsHandler(repo repository.CaptureRepository, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Error querying capture stats: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		if stats == nil {
			stats = []dto.StationCaptureStats{}
		}
		c.JSON(http.StatusOK, gin.H{"stations": stats})
	}
}

// atoiDefault returns a positive integer parsed from s, or def.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate accepts "2006-01-02" or RFC 3339. Anything else is no bound.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseBool(v string) *bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
