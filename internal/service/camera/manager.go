package camera

import (
	"fmt"
	"sync"

	"stationagent/internal/logger"
	"stationagent/internal/metrics"
	"stationagent/internal/model"
)

// Manager holds at most one open device.
type Manager struct {
	opener       Opener
	settings     Settings
	warmupFrames int
	slots        *model.SlotTable
	logger       *logger.Logger
	metrics      *metrics.Metrics

	mu     sync.Mutex
	device Device // nil when closed
	id     int
}

// NewManager creates a closed Manager.
func NewManager(opener Opener, settings Settings, warmupFrames int, slots *model.SlotTable, log *logger.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		opener:       opener,
		settings:     settings,
		warmupFrames: warmupFrames,
		slots:        slots,
		logger:       log,
		metrics:      m,
	}
}

// Open makes id the open device. It is a no-op when id is already open and
// healthy. On failure the manager ends up closed.
func (m *Manager) Open(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.id == id && m.device.IsOpened() {
		m.logger.Debug("Camera %d already open", id)
		return true
	}

	m.releaseLocked()

	station, _ := m.slots.Station(id)
	m.logger.Info("Opening camera %d (%s station)", id, station)

	dev, err := m.openLocked(id)
	if err != nil {
		m.logger.Error("Failed to open camera %d: %v", id, err)
		m.metrics.CameraOpened(id, false)
		return false
	}

	m.device = dev
	m.id = id
	m.metrics.CameraOpened(id, true)
	m.logger.Info("Camera %d opened", id)
	return true
}

// openLocked opens, configures and warms up a device. Driver panics are
// reported as errors.
func (m *Manager) openLocked(id int) (dev Device, err error) {
	defer func() {
		if r := recover(); r != nil {
			if dev != nil {
				dev.Close()
			}
			dev, err = nil, fmt.Errorf("panic while opening device: %v", r)
		}
	}()

	if _, ok := m.slots.Slot(id); !ok {
		return nil, fmt.Errorf("device %d is not configured", id)
	}

	dev, err = m.opener.Open(id)
	if err != nil {
		return nil, err
	}
	if !dev.IsOpened() {
		dev.Close()
		return nil, fmt.Errorf("device %d did not open", id)
	}

	if err := dev.Configure(m.settings); err != nil {
		// Drivers often reject one property and still stream fine.
		m.logger.Warning("Camera %d: configure: %v", id, err)
	}

	for i := 0; i < m.warmupFrames; i++ {
		dev.Read()
	}

	return dev, nil
}

// Read returns a frame from the open device, or false when closed or when the
// read fails.
func (m *Manager) Read() (model.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readLocked()
}

// ReadFrom is Read restricted to device id. It returns false when a different
// device is open, so a frame is never attributed to the wrong device after a
// concurrent switch.
func (m *Manager) ReadFrom(id int) (model.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.id != id {
		m.logger.Debug("Camera %d requested but camera %d is open", id, m.id)
		return model.Frame{}, false
	}
	return m.readLocked()
}

func (m *Manager) readLocked() (model.Frame, bool) {
	if m.device == nil || !m.device.IsOpened() {
		return model.Frame{}, false
	}

	frame, ok := m.device.Read()
	if !ok || frame.Empty() {
		m.logger.Warning("Failed to read from camera %d", m.id)
		m.metrics.FrameReadFailed(m.id)
		return model.Frame{}, false
	}
	return frame, true
}

// Release closes the open device, if any.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.device == nil {
		return
	}
	m.logger.Debug("Releasing camera %d", m.id)
	if err := m.device.Close(); err != nil {
		m.logger.Warning("Camera %d: close: %v", m.id, err)
	}
	m.device = nil
	m.metrics.CameraReleased()
}

// ActiveID returns the open device id.
func (m *Manager) ActiveID() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return 0, false
	}
	return m.id, true
}

// Slots returns the device mapping the manager was built with.
func (m *Manager) Slots() *model.SlotTable {
	return m.slots
}
