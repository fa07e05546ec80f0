// Package service holds the agent's background tasks: the live feed
// streamer, the round-robin auto-capture and the active device poller, plus
// the manual capture trigger. They share one camera.Manager and never hold a
// device handle themselves.
package service

import (
	"context"

	"stationagent/internal/model"
	"stationagent/internal/service/backend"
)

// Camera is the subset of camera.Manager the tasks use.
type Camera interface {
	Open(id int) bool
	// ReadFrom reads a frame only if id is the open device.
	ReadFrom(id int) (model.Frame, bool)
	ActiveID() (int, bool)
	Slots() *model.SlotTable
}

// Inferer runs detection for a station.
type Inferer interface {
	Infer(frame model.Frame, station model.Station) (model.DetectionResult, error)
}

// LivePusher delivers best-effort live frames.
type LivePusher interface {
	PushLiveFrame(ctx context.Context, station model.Station, frame model.Frame) bool
}

// CaptureSender delivers durable captures.
type CaptureSender interface {
	Capture(ctx context.Context, frame model.Frame, deviceID int, isManual, shouldUpload bool) (backend.CaptureResult, error)
}

// ActivePoller reports the device the backend wants open.
type ActivePoller interface {
	PollActiveDevice(ctx context.Context) (int, bool)
}

// Publisher receives every annotated live frame for local preview. It must
// not block.
type Publisher interface {
	Publish(station model.Station, frame model.Frame, counts model.Counts)
}

// Journal records durable capture attempts.
type Journal interface {
	AddRecord(record model.CaptureRecord)
}
