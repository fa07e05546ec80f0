package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stationagent/internal/logger"
	"stationagent/internal/metrics"
	"stationagent/internal/model"
)

// capturer sends one durable capture and journals the attempt.
type capturer struct {
	sender  CaptureSender
	journal Journal
	slots   *model.SlotTable
	clock   Clock
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func (c *capturer) send(ctx context.Context, frame model.Frame, deviceID int, manual, upload bool) model.CaptureRecord {
	station, _ := c.slots.Station(deviceID)
	start := c.clock.Now()

	res, err := c.sender.Capture(ctx, frame, deviceID, manual, upload)

	record := model.CaptureRecord{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Station:   station,
		Manual:    manual,
		Upload:    upload,
		Success:   err == nil,
		Bytes:     res.Bytes,
		Duration:  c.clock.Now().Sub(start),
		Timestamp: start,
	}
	if err != nil {
		record.Error = err.Error()
		c.logger.Error("Capture failed (camera %d, %s, manual=%t): %v", deviceID, station, manual, err)
	} else {
		c.logger.Info("Capture sent (camera %d, %s, manual=%t) in %v", deviceID, station, manual, record.Duration.Round(time.Millisecond))
	}

	c.metrics.CaptureSent(string(station), manual, record.Success)
	if c.journal != nil {
		c.journal.AddRecord(record)
	}
	return record
}
