// Package app wires the agent together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"stationagent/internal/config"
	"stationagent/internal/dto"
	"stationagent/internal/logger"
	"stationagent/internal/metrics"
	"stationagent/internal/model"
	"stationagent/internal/repository/sqlite"
	"stationagent/internal/route"
	"stationagent/internal/service"
	"stationagent/internal/service/ai"
	"stationagent/internal/service/backend"
	"stationagent/internal/service/camera"
	"stationagent/internal/service/storage"
	wshub "stationagent/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

// Vision is the device and model backend the agent runs on.
type Vision struct {
	Opener    camera.Opener
	Detectors map[model.ModelKind]ai.Detector
	Renderer  ai.Renderer
	Encoder   backend.Encoder
	// Close releases the models. Optional.
	Close func() error
}

// Agent is the composition root. It builds every component, starts the three
// background tasks and stops them again.
type Agent struct {
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	vision  Vision
	clock   service.Clock

	camera  *camera.Manager
	client  *backend.Client
	state   *service.State
	hub     *wshub.HubService
	db      *sqlite.DB
	journal *storage.JournalService

	poller      *service.ActiveDevicePoller
	streamer    *service.LiveFeedStreamer
	autoCapture *service.AutoCaptureManager
	manual      *service.ManualCapture

	mu       sync.Mutex
	tasks    []*service.Task
	server   *http.Server
	cancelBg context.CancelFunc
	bg       sync.WaitGroup
	started  time.Time
	stopped  bool
}

// New builds the agent. Nothing is started and no device is opened.
func New(cfg *config.Config, vision Vision, log *logger.Logger) (*Agent, error) {
	if vision.Opener == nil || vision.Encoder == nil {
		return nil, errors.New("vision backend needs a device opener and an encoder")
	}

	slots, err := cfg.SlotTable()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	clock := service.RealClock()

	engine, err := ai.NewEngine(vision.Detectors, vision.Renderer, slots, cfg.Inference.MaxFrameDim, log.With("ai"), m)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	settings := camera.Settings{
		Width:      cfg.Camera.Width,
		Height:     cfg.Camera.Height,
		FPS:        cfg.Camera.FPS,
		BufferSize: cfg.Camera.BufferSize,
	}
	cam := camera.NewManager(vision.Opener, settings, cfg.Camera.WarmupFrames, slots, log.With("camera"), m)
	client := backend.New(cfg.Backend, vision.Encoder, log.With("backend"))
	state := service.NewState()
	hub := wshub.NewHubService(vision.Encoder, log.With("preview"))
	journal := storage.NewJournalService(cfg.Storage, log.With("journal"), sqlite.NewCaptureRepository(db))

	return &Agent{
		cfg:         cfg,
		logger:      log,
		metrics:     m,
		vision:      vision,
		clock:       clock,
		camera:      cam,
		client:      client,
		state:       state,
		hub:         hub,
		db:          db,
		journal:     journal,
		poller:      service.NewActiveDevicePoller(client, cam, state, clock, cfg.Poller.Interval, cfg.Poller.ErrorBackoff, log.With("poller"), m),
		streamer:    service.NewLiveFeedStreamer(cam, engine, client, hub, state, clock, cfg.Stream, log.With("streamer"), m),
		autoCapture: service.NewAutoCaptureManager(cam, client, journal, clock, cfg.AutoCapture, log.With("autocapture"), m),
		manual:      service.NewManualCapture(cam, client, journal, clock, log.With("manual"), m),
	}, nil
}

// Start checks the backend, starts the poller, waits the startup delay and
// then starts the streamer and auto-capture. An unreachable backend is only a
// warning.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if !a.started.IsZero() {
		a.mu.Unlock()
		return errors.New("agent already started")
	}
	a.started = a.clock.Now()
	a.mu.Unlock()

	a.logger.Info("Starting station agent (backend %s, %d stations)", a.client.BaseURL(), a.camera.Slots().Len())
	if health, err := a.client.Health(ctx); err != nil {
		a.logger.Warning("Backend health check failed: %v", err)
	} else {
		a.logger.Info("Backend is %s", health.Status)
	}

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.mu.Lock()
	a.cancelBg = cancel
	a.mu.Unlock()
	a.runBackground(bgCtx, a.journal.Run)
	a.runBackground(bgCtx, a.hub.Run)

	if a.cfg.Status.Enabled {
		if err := a.serve(); err != nil {
			a.Stop()
			return err
		}
	}

	a.addTask(a.poller.Start(ctx))

	if err := a.clock.Sleep(ctx, a.cfg.Poller.StartupDelay); err != nil {
		return nil
	}

	a.addTask(a.streamer.Start(ctx))
	a.addTask(a.autoCapture.Start(ctx))
	a.logger.Info("Station agent started")
	return nil
}

func (a *Agent) runBackground(ctx context.Context, fn func(ctx context.Context)) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn(ctx)
	}()
}

func (a *Agent) addTask(t *service.Task) {
	if t == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		t.Stop()
		return
	}
	a.tasks = append(a.tasks, t)
}

// serve binds the ops server synchronously so a busy port fails Start.
func (a *Agent) serve() error {
	router := route.SetupRoutes(a.cfg.Status, route.Deps{
		Status:   a,
		Capture:  a.manual,
		Captures: sqlite.NewCaptureRepository(a.db),
		Pending:  a.journal,
		Hub:      a.hub,
		Metrics:  a.metrics,
		Logger:   a.logger.With("http"),
	})

	ln, err := net.Listen("tcp", a.cfg.Status.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Status.Addr, err)
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	a.logger.Info("Ops server listening on %s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Ops server error: %v", err)
		}
	}()
	return nil
}

// Stop signals every task, waits for each, releases the device and flushes the
// journal. It is safe to call more than once.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	tasks := append([]*service.Task(nil), a.tasks...)
	srv := a.server
	cancelBg := a.cancelBg
	a.mu.Unlock()

	a.logger.Info("Stopping station agent")

	for _, t := range tasks {
		t.Stop()
	}
	for _, t := range tasks {
		t.Wait()
		a.logger.Debug("Task %s stopped", t.Name())
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warning("Ops server forced to shutdown: %v", err)
		}
		cancel()
	}

	a.camera.Release()

	if cancelBg != nil {
		cancelBg()
	}
	a.bg.Wait()

	if err := a.db.Close(); err != nil {
		a.logger.Warning("Failed to close journal database: %v", err)
	}
	if a.vision.Close != nil {
		if err := a.vision.Close(); err != nil {
			a.logger.Warning("Failed to release models: %v", err)
		}
	}
	a.logger.Info("Station agent stopped")
}

// Run starts the agent and blocks until ctx is done, then stops it.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.Stop()
	return nil
}

// Status reports the runtime state served on /api/status.
func (a *Agent) Status() dto.StatusResponse {
	resp := dto.StatusResponse{
		LiveFPS:         a.state.LiveFPS(),
		Tasks:           map[string]bool{"poller": false, "streamer": false, "autocapture": false},
		Stations:        make(map[string]dto.StationStatus),
		Viewers:         a.hub.GetClientCount(),
		PendingCaptures: a.journal.Pending(),
	}

	if id, ok := a.camera.ActiveID(); ok {
		resp.ActiveDevice = &id
		if st, ok := a.camera.Slots().Station(id); ok {
			resp.ActiveStation = string(st)
		}
	}
	if id, ok := a.state.LastKnownActive(); ok {
		resp.LastKnownActive = &id
	}

	for st, s := range a.state.Stations() {
		resp.Stations[string(st)] = dto.StationStatus{
			Scratch:   s.Counts.Scratch,
			Dent:      s.Counts.Dent,
			Other:     s.Counts.Other,
			Pushed:    s.Pushed,
			Failed:    s.Failed,
			UpdatedAt: s.UpdatedAt,
		}
	}

	a.mu.Lock()
	for _, t := range a.tasks {
		resp.Tasks[t.Name()] = t.Running()
	}
	if !a.started.IsZero() {
		resp.Uptime = a.clock.Now().Sub(a.started).Round(time.Second).String()
	}
	a.mu.Unlock()

	return resp
}
