package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"stationagent/internal/model"
)

var (
	boxColor  = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	goodColor = color.RGBA{R: 0, G: 200, B: 0, A: 0}
)

// Renderer resizes and annotates frames.
type Renderer struct{}

func (Renderer) Resize(frame model.Frame, width, height int) (model.Frame, error) {
	src, err := toMat(frame)
	if err != nil {
		return model.Frame{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLanczos4)
	if dst.Empty() {
		return model.Frame{}, fmt.Errorf("resize to %dx%d produced an empty frame", width, height)
	}
	return fromMat(dst, frame), nil
}

// Annotate draws a box and a "label confidence" caption per detection.
func (Renderer) Annotate(frame model.Frame, detections []model.Detection) (model.Frame, error) {
	if len(detections) == 0 {
		return frame, nil
	}

	mat, err := toMat(frame)
	if err != nil {
		return model.Frame{}, err
	}
	defer mat.Close()

	for _, d := range detections {
		c := boxColor
		if d.Label == "good" {
			c = goodColor
		}

		if err := gocv.Rectangle(&mat, d.Box, c, 2); err != nil {
			return model.Frame{}, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		y := d.Box.Min.Y - 5
		if y < 10 {
			y = d.Box.Min.Y + 15
		}
		if err := gocv.PutText(&mat, label, image.Pt(d.Box.Min.X, y), gocv.FontHersheySimplex, 0.5, c, 1); err != nil {
			return model.Frame{}, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	return fromMat(mat, frame), nil
}

// JPEGEncoder encodes frames at a fixed quality.
type JPEGEncoder struct {
	Quality int
}

func (e JPEGEncoder) Encode(frame model.Frame) ([]byte, error) {
	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, e.Quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
