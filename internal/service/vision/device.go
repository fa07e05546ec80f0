package vision

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"stationagent/internal/model"
	"stationagent/internal/service/camera"
)

// DeviceOpener opens local V4L/DirectShow devices by index.
type DeviceOpener struct{}

func (DeviceOpener) Open(id int) (camera.Device, error) {
	capture, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open video device %d: %w", id, err)
	}
	return &videoDevice{capture: capture, mat: gocv.NewMat()}, nil
}

type videoDevice struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

func (d *videoDevice) Configure(s camera.Settings) error {
	d.capture.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
	d.capture.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	d.capture.Set(gocv.VideoCaptureFPS, float64(s.FPS))
	d.capture.Set(gocv.VideoCaptureBufferSize, float64(s.BufferSize))

	w := int(d.capture.Get(gocv.VideoCaptureFrameWidth))
	h := int(d.capture.Get(gocv.VideoCaptureFrameHeight))
	if w != s.Width || h != s.Height {
		return fmt.Errorf("device runs at %dx%d, requested %dx%d", w, h, s.Width, s.Height)
	}
	return nil
}

func (d *videoDevice) Read() (model.Frame, bool) {
	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return model.Frame{}, false
	}
	return model.Frame{
		Data:       d.mat.ToBytes(),
		Width:      d.mat.Cols(),
		Height:     d.mat.Rows(),
		CapturedAt: time.Now(),
	}, true
}

func (d *videoDevice) IsOpened() bool {
	return d.capture.IsOpened()
}

func (d *videoDevice) Close() error {
	d.mat.Close()
	return d.capture.Close()
}
