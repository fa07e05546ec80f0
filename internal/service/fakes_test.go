package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stationagent/internal/logger"
	"stationagent/internal/model"
	"stationagent/internal/service/backend"
	"stationagent/internal/service/camera"
	"stationagent/internal/service/camera/cameratest"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCamera(t *testing.T) (*camera.Manager, *cameratest.Opener) {
	t.Helper()
	slots, err := model.NewSlotTable(model.DefaultSlots())
	if err != nil {
		t.Fatalf("NewSlotTable failed: %v", err)
	}
	opener := cameratest.NewOpener()
	m := camera.NewManager(opener, camera.Settings{Width: 640, Height: 480, FPS: 10, BufferSize: 1}, 0, slots, logger.Nop(), nil)
	return m, opener
}

type fakeEngine struct {
	mu    sync.Mutex
	calls int
	fail  func(call int) bool
	delay time.Duration
	clock *fakeClock
}

func (e *fakeEngine) Infer(frame model.Frame, station model.Station) (model.DetectionResult, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()

	if e.clock != nil {
		e.clock.Advance(e.delay)
	}
	if e.fail != nil && e.fail(call) {
		return model.DetectionResult{}, errors.New("model exploded")
	}
	annotated := model.Frame{Data: []byte("annotated"), Width: frame.Width, Height: frame.Height}
	return model.DetectionResult{Annotated: annotated, Counts: model.Counts{Scratch: 1}}, nil
}

type pushCall struct {
	station model.Station
	frame   model.Frame
}

type fakePusher struct {
	mu     sync.Mutex
	calls  []pushCall
	result func(call int) bool
	onPush func(call int)
}

func (p *fakePusher) PushLiveFrame(_ context.Context, station model.Station, frame model.Frame) bool {
	p.mu.Lock()
	p.calls = append(p.calls, pushCall{station, frame})
	n := len(p.calls)
	p.mu.Unlock()

	if p.onPush != nil {
		p.onPush(n)
	}
	if p.result != nil {
		return p.result(n)
	}
	return true
}

type captureCall struct {
	deviceID int
	manual   bool
	upload   bool
	at       time.Time
}

type fakeSender struct {
	mu        sync.Mutex
	clock     Clock
	calls     []captureCall
	err       error
	onCapture func(call int)
}

func (s *fakeSender) Capture(_ context.Context, frame model.Frame, deviceID int, isManual, shouldUpload bool) (backend.CaptureResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, captureCall{deviceID, isManual, shouldUpload, s.clock.Now()})
	n := len(s.calls)
	s.mu.Unlock()

	if s.onCapture != nil {
		s.onCapture(n)
	}
	if s.err != nil {
		return backend.CaptureResult{}, s.err
	}
	return backend.CaptureResult{Bytes: len(frame.Data)}, nil
}

func (s *fakeSender) ids() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, len(s.calls))
	for i, c := range s.calls {
		ids[i] = c.deviceID
	}
	return ids
}

type fakeJournal struct {
	mu      sync.Mutex
	records []model.CaptureRecord
}

func (j *fakeJournal) AddRecord(r model.CaptureRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, r)
}

type scriptedPoller struct {
	ids   []int
	avail []bool
	n     int
}

func (p *scriptedPoller) PollActiveDevice(context.Context) (int, bool) {
	i := p.n
	p.n++
	if i >= len(p.ids) {
		return 0, false
	}
	if p.avail != nil && !p.avail[i] {
		return 0, false
	}
	return p.ids[i], true
}

type fakePublisher struct {
	mu       sync.Mutex
	stations []model.Station
}

func (p *fakePublisher) Publish(station model.Station, _ model.Frame, _ model.Counts) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stations = append(p.stations, station)
}

// switchingCamera opens device to right after the first ActiveID answer,
// as a concurrent poller switch would.
type switchingCamera struct {
	*camera.Manager
	to   int
	once sync.Once
}

func (c *switchingCamera) ActiveID() (int, bool) {
	id, ok := c.Manager.ActiveID()
	c.once.Do(func() { c.Manager.Open(c.to) })
	return id, ok
}

// sleepHookClock runs onSleep before every sleep.
type sleepHookClock struct {
	*fakeClock
	onSleep func(d time.Duration)
}

func (c *sleepHookClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.onSleep != nil {
		c.onSleep(d)
	}
	return c.fakeClock.Sleep(ctx, d)
}
