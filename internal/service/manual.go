package service

import (
	"context"
	"errors"

	"stationagent/internal/logger"
	"stationagent/internal/metrics"
	"stationagent/internal/model"
)

var (
	// ErrNoActiveDevice is returned when a capture is requested with no open device.
	ErrNoActiveDevice = errors.New("no active device")
	// ErrNoFrame is returned when the active device produced nothing.
	ErrNoFrame = errors.New("no frame from active device")
)

// ManualCapture sends the active device's current frame on demand.
type ManualCapture struct {
	camera   Camera
	capturer *capturer
}

func NewManualCapture(cam Camera, sender CaptureSender, journal Journal, clock Clock, log *logger.Logger, m *metrics.Metrics) *ManualCapture {
	return &ManualCapture{
		camera: cam,
		capturer: &capturer{
			sender:  sender,
			journal: journal,
			slots:   cam.Slots(),
			clock:   clock,
			logger:  log,
			metrics: m,
		},
	}
}

// Trigger reads one frame from the active device and sends it with
// is_manual=true. The returned record describes the backend outcome.
func (m *ManualCapture) Trigger(ctx context.Context) (model.CaptureRecord, error) {
	id, ok := m.camera.ActiveID()
	if !ok {
		return model.CaptureRecord{}, ErrNoActiveDevice
	}
	frame, ok := m.camera.ReadFrom(id)
	if !ok {
		return model.CaptureRecord{DeviceID: id}, ErrNoFrame
	}
	return m.capturer.send(ctx, frame, id, true, true), nil
}
