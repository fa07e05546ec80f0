package service

import (
	"context"
	"time"

	"stationagent/internal/config"
	"stationagent/internal/logger"
	"stationagent/internal/metrics"
	"stationagent/internal/model"
)

// LiveFeedStreamer reads whichever device is active, annotates the frame and
// pushes it to the station's live feed at a paced rate.
type LiveFeedStreamer struct {
	camera    Camera
	engine    Inferer
	pusher    LivePusher
	publisher Publisher
	state     *State
	clock     Clock
	cfg       config.StreamConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics

	frames      int // processed in the current report window
	pushed      int
	windowStart time.Time
}

// NewLiveFeedStreamer creates a streamer. publisher may be nil.
func NewLiveFeedStreamer(cam Camera, engine Inferer, pusher LivePusher, publisher Publisher, state *State, clock Clock, cfg config.StreamConfig, log *logger.Logger, m *metrics.Metrics) *LiveFeedStreamer {
	return &LiveFeedStreamer{
		camera:    cam,
		engine:    engine,
		pusher:    pusher,
		publisher: publisher,
		state:     state,
		clock:     clock,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
	}
}

// Start runs the loop as a task.
func (s *LiveFeedStreamer) Start(ctx context.Context) *Task {
	return StartTask(ctx, "streamer", s.Run)
}

// Run loops until ctx is done. Iteration failures back off and continue.
func (s *LiveFeedStreamer) Run(ctx context.Context) {
	s.logger.Info("Live feed streamer started (target %.1f fps)", s.cfg.TargetFPS)
	defer s.logger.Info("Live feed streamer stopped")

	s.windowStart = s.clock.Now()
	for ctx.Err() == nil {
		var wait time.Duration
		err := safeIteration(s.logger, func() error {
			var err error
			wait, err = s.step(ctx)
			return err
		})
		if err != nil {
			s.logger.Error("Live feed iteration failed: %v", err)
			s.metrics.TaskFailed("streamer")
			wait = s.cfg.ErrorBackoff
		}
		if s.clock.Sleep(ctx, wait) != nil {
			return
		}
	}
}

// step runs one iteration and returns how long to sleep before the next.
func (s *LiveFeedStreamer) step(ctx context.Context) (time.Duration, error) {
	id, ok := s.camera.ActiveID()
	if !ok {
		return s.cfg.IdleDelay, nil
	}
	station, ok := s.camera.Slots().Station(id)
	if !ok {
		return s.cfg.IdleDelay, nil
	}
	frame, ok := s.camera.ReadFrom(id)
	if !ok {
		return s.cfg.IdleDelay, nil
	}

	start := s.clock.Now()
	result, err := s.engine.Infer(frame, station)
	if err != nil {
		s.logger.Warning("Inference failed for %s, passing frame through: %v", station, err)
		s.metrics.InferenceFailed(string(station))
		result = model.DetectionResult{Annotated: frame}
	}
	elapsed := s.clock.Now().Sub(start)

	pushed := s.pusher.PushLiveFrame(ctx, station, result.Annotated)
	s.metrics.LiveFramePushed(string(station), pushed)
	s.state.recordLive(station, result.Counts, pushed, s.clock.Now())
	if s.publisher != nil {
		s.publisher.Publish(station, result.Annotated, result.Counts)
	}
	s.frames++
	if pushed {
		s.pushed++
	}
	s.reportFPS()

	return pace(s.cfg.FrameInterval(), elapsed), nil
}

// reportFPS logs the processing rate, and the share that reached the backend,
// once per report window.
func (s *LiveFeedStreamer) reportFPS() {
	now := s.clock.Now()
	window := now.Sub(s.windowStart)
	if s.cfg.FPSReportInterval <= 0 || window < s.cfg.FPSReportInterval {
		return
	}
	fps := float64(s.frames) / window.Seconds()
	pushRate := float64(s.pushed) / window.Seconds()
	s.logger.Info("Live feed: %.1f fps processed, %.1f fps pushed", fps, pushRate)
	s.metrics.SetLiveFPS(fps)
	s.state.setLiveFPS(fps)
	s.frames, s.pushed = 0, 0
	s.windowStart = now
}

// pace returns the remainder of the frame interval after elapsed, never
// negative.
func pace(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}
