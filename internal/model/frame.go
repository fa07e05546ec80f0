package model

import "time"

// Frame is a raw BGR24 pixel buffer read from a capture device.
// It is handed to exactly one consumer and never mutated after capture.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return len(f.Data) == 0 || f.Width <= 0 || f.Height <= 0
}
