package service

import (
	"context"
	"time"

	"stationagent/internal/logger"
	"stationagent/internal/metrics"
)

// ActiveDevicePoller applies the backend's active device choice to the camera
// manager. It is the only writer of the last known active id.
type ActiveDevicePoller struct {
	poller   ActivePoller
	camera   Camera
	state    *State
	clock    Clock
	interval time.Duration
	backoff  time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewActiveDevicePoller(poller ActivePoller, cam Camera, state *State, clock Clock, interval, backoff time.Duration, log *logger.Logger, m *metrics.Metrics) *ActiveDevicePoller {
	return &ActiveDevicePoller{
		poller:   poller,
		camera:   cam,
		state:    state,
		clock:    clock,
		interval: interval,
		backoff:  backoff,
		logger:   log,
		metrics:  m,
	}
}

func (p *ActiveDevicePoller) Start(ctx context.Context) *Task {
	return StartTask(ctx, "poller", p.Run)
}

func (p *ActiveDevicePoller) Run(ctx context.Context) {
	p.logger.Info("Active device poller started (every %v)", p.interval)
	defer p.logger.Info("Active device poller stopped")

	for ctx.Err() == nil {
		wait := p.interval
		if err := safeIteration(p.logger, func() error { p.Poll(ctx); return nil }); err != nil {
			p.logger.Error("Poll iteration failed: %v", err)
			p.metrics.TaskFailed("poller")
			wait = p.backoff
		}
		if p.clock.Sleep(ctx, wait) != nil {
			return
		}
	}
}

// Poll runs one poll. An unavailable answer changes nothing.
func (p *ActiveDevicePoller) Poll(ctx context.Context) {
	id, ok := p.poller.PollActiveDevice(ctx)
	if !ok {
		p.metrics.PollFailed()
		return
	}
	if last, known := p.state.LastKnownActive(); known && last == id {
		return
	}

	station, _ := p.camera.Slots().Station(id)
	p.logger.Info("Backend selected camera %d (%s)", id, station)
	if !p.camera.Open(id) {
		return
	}
	p.state.setLastKnownActive(id)
	p.metrics.ActiveDeviceSwitched()
}
