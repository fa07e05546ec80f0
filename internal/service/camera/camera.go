// Package camera owns the single open capture device.
//
// Manager is the only component allowed to hold a device handle. Every
// operation serializes through one mutex, so at most one device is open at any
// time no matter how many tasks request switches. Reads never reconnect: a
// failed read returns nothing and recovery is driven by the next Open issued by
// a caller.
package camera

import (
	"stationagent/internal/model"
)

// Settings are applied to a device right after it opens.
type Settings struct {
	Width      int
	Height     int
	FPS        int
	BufferSize int
}

// Device is an open capture handle.
type Device interface {
	// Configure applies resolution, frame rate and buffering.
	Configure(settings Settings) error
	// Read returns the next frame, or false on failure.
	Read() (model.Frame, bool)
	// IsOpened reports whether the handle is still healthy.
	IsOpened() bool
	Close() error
}

// Opener opens a device by its numeric index.
type Opener interface {
	Open(id int) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(id int) (Device, error)

func (f OpenerFunc) Open(id int) (Device, error) {
	return f(id)
}
