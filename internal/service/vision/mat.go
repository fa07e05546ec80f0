// Package vision binds the agent to OpenCV through gocv: capture devices,
// ONNX detection models, resizing, annotation and JPEG encoding.
package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"stationagent/internal/model"
)

// toMat wraps a BGR frame in a new Mat. The caller closes it.
func toMat(frame model.Frame) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty frame")
	}
	if len(frame.Data) != frame.Width*frame.Height*3 {
		return gocv.NewMat(), fmt.Errorf("frame is %d bytes, want %dx%dx3", len(frame.Data), frame.Width, frame.Height)
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
}

// fromMat copies a BGR Mat into a frame.
func fromMat(mat gocv.Mat, src model.Frame) model.Frame {
	return model.Frame{
		Data:       mat.ToBytes(),
		Width:      mat.Cols(),
		Height:     mat.Rows(),
		CapturedAt: src.CapturedAt,
	}
}
