package service

import (
	"context"

	"stationagent/internal/config"
	"stationagent/internal/logger"
	"stationagent/internal/metrics"
)

// AutoCaptureManager visits every configured device in ascending id order,
// forever, sending one durable capture per visit.
type AutoCaptureManager struct {
	camera   Camera
	capturer *capturer
	clock    Clock
	cfg      config.AutoCaptureConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewAutoCaptureManager(cam Camera, sender CaptureSender, journal Journal, clock Clock, cfg config.AutoCaptureConfig, log *logger.Logger, m *metrics.Metrics) *AutoCaptureManager {
	return &AutoCaptureManager{
		camera: cam,
		capturer: &capturer{
			sender:  sender,
			journal: journal,
			slots:   cam.Slots(),
			clock:   clock,
			logger:  log,
			metrics: m,
		},
		clock:   clock,
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}
}

// Start runs the loop as a task. A disabled manager returns nil.
func (a *AutoCaptureManager) Start(ctx context.Context) *Task {
	if !a.cfg.Enabled {
		a.logger.Info("Auto-capture disabled")
		return nil
	}
	return StartTask(ctx, "autocapture", a.Run)
}

// Run cycles until ctx is done.
func (a *AutoCaptureManager) Run(ctx context.Context) {
	a.logger.Info("Auto-capture started (%v per station)", a.cfg.Interval)
	defer a.logger.Info("Auto-capture stopped")

	for ctx.Err() == nil {
		err := safeIteration(a.logger, func() error {
			return a.cycle(ctx)
		})
		if err == nil || ctx.Err() != nil {
			continue
		}
		a.logger.Error("Auto-capture cycle failed: %v", err)
		a.metrics.TaskFailed("autocapture")
		if a.clock.Sleep(ctx, a.cfg.ErrorBackoff) != nil {
			return
		}
	}
}

// cycle visits each slot once. It returns ctx.Err() when stopped mid-cycle.
func (a *AutoCaptureManager) cycle(ctx context.Context) error {
	for _, slot := range a.camera.Slots().Slots() {
		if active, ok := a.camera.ActiveID(); !ok || active != slot.ID {
			if !a.camera.Open(slot.ID) {
				a.logger.Warning("Auto-capture: could not open camera %d (%s)", slot.ID, slot.Station)
			}
			if err := a.clock.Sleep(ctx, a.cfg.StabilizeDelay); err != nil {
				return err
			}
		}

		if frame, ok := a.camera.ReadFrom(slot.ID); ok {
			a.capturer.send(ctx, frame, slot.ID, false, true)
		} else {
			a.logger.Warning("Auto-capture: no frame from camera %d (%s)", slot.ID, slot.Station)
		}

		if err := a.clock.Sleep(ctx, a.cfg.Interval); err != nil {
			return err
		}
	}
	return nil
}
