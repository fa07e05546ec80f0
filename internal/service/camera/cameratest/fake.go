// Package cameratest provides an in-memory capture device for tests.
package cameratest

import (
	"errors"
	"sync"
	"time"

	"stationagent/internal/model"
	"stationagent/internal/service/camera"
)

// Opener hands out fake devices and records how they are used.
type Opener struct {
	mu        sync.Mutex
	opens     []int
	open      int
	maxOpen   int
	failing   map[int]bool
	panicking map[int]bool
	devices   []*Device

	// FrameWidth and FrameHeight size the frames devices produce. Defaults 4x3.
	FrameWidth  int
	FrameHeight int
}

// NewOpener creates an Opener whose devices always read successfully.
func NewOpener() *Opener {
	return &Opener{
		failing:     make(map[int]bool),
		panicking:   make(map[int]bool),
		FrameWidth:  4,
		FrameHeight: 3,
	}
}

// Fail makes opens of id return an error.
func (o *Opener) Fail(id int, fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failing[id] = fail
}

// Panic makes opens of id panic.
func (o *Opener) Panic(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.panicking[id] = true
}

func (o *Opener) Open(id int) (camera.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opens = append(o.opens, id)
	if o.panicking[id] {
		panic("driver exploded")
	}
	if o.failing[id] {
		return nil, errors.New("device busy")
	}

	o.open++
	if o.open > o.maxOpen {
		o.maxOpen = o.open
	}
	dev := &Device{ID: id, opener: o, healthy: true}
	o.devices = append(o.devices, dev)
	return dev, nil
}

// Opens returns the ids passed to Open, in order.
func (o *Opener) Opens() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.opens...)
}

// OpenCount returns how many devices are currently open.
func (o *Opener) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// MaxOpen returns the highest number of simultaneously open devices seen.
func (o *Opener) MaxOpen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxOpen
}

// Last returns the most recently opened device.
func (o *Opener) Last() *Device {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}

func (o *Opener) closed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open--
}

// Device is a fake capture handle.
type Device struct {
	ID     int
	opener *Opener

	mu         sync.Mutex
	healthy    bool
	closed     bool
	readFails  bool
	reads      int
	configured camera.Settings
}

func (d *Device) Configure(s camera.Settings) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configured = s
	return nil
}

func (d *Device) Read() (model.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.closed || d.readFails {
		return model.Frame{}, false
	}
	w, h := d.opener.FrameWidth, d.opener.FrameHeight
	return model.Frame{
		Data:       make([]byte, w*h*3),
		Width:      w,
		Height:     h,
		CapturedAt: time.Now(),
	}, true
}

func (d *Device) IsOpened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.healthy && !d.closed
}

func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	d.opener.closed()
	return nil
}

// SetHealthy toggles what IsOpened reports.
func (d *Device) SetHealthy(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.healthy = ok
}

// SetReadFails makes subsequent reads fail.
func (d *Device) SetReadFails(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readFails = fail
}

// Reads returns the number of Read calls.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Configured returns the last applied settings.
func (d *Device) Configured() camera.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configured
}
