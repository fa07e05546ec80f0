package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"stationagent/internal/logger"
	"stationagent/internal/metrics"
	"stationagent/internal/model"
)

// ErrModelNotLoaded is returned when no detector serves a station's model.
var ErrModelNotLoaded = errors.New("detection model not loaded")

// Detector runs one detection model over a frame.
type Detector interface {
	Detect(frame model.Frame) ([]model.Detection, error)
}

// Renderer does the pixel work around detection.
type Renderer interface {
	Resize(frame model.Frame, width, height int) (model.Frame, error)
	Annotate(frame model.Frame, detections []model.Detection) (model.Frame, error)
}

// Engine selects a model per station, downsizes the frame, counts detections
// and burns annotations into the result.
type Engine struct {
	models   map[model.ModelKind]Detector
	renderer Renderer
	slots    *model.SlotTable
	maxDim   int
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewEngine requires a damage model. A missing brake model falls back to the
// damage model.
func NewEngine(models map[model.ModelKind]Detector, renderer Renderer, slots *model.SlotTable, maxDim int, log *logger.Logger, m *metrics.Metrics) (*Engine, error) {
	damage, ok := models[model.ModelDamage]
	if !ok || damage == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotLoaded, model.ModelDamage)
	}

	resolved := map[model.ModelKind]Detector{model.ModelDamage: damage}
	if brake, ok := models[model.ModelBrake]; ok && brake != nil {
		resolved[model.ModelBrake] = brake
	} else {
		log.Warning("No brake model loaded, brake station uses the damage model")
		resolved[model.ModelBrake] = damage
	}

	return &Engine{
		models:   resolved,
		renderer: renderer,
		slots:    slots,
		maxDim:   maxDim,
		logger:   log,
		metrics:  m,
	}, nil
}

// Infer runs the station's model over frame. It does not retry.
func (e *Engine) Infer(frame model.Frame, station model.Station) (model.DetectionResult, error) {
	slot, ok := e.slots.ByStation(station)
	if !ok {
		return model.DetectionResult{}, fmt.Errorf("%w: %s", model.ErrUnknownStation, station)
	}
	detector, ok := e.models[slot.Model]
	if !ok {
		return model.DetectionResult{}, fmt.Errorf("%w: %s", ErrModelNotLoaded, slot.Model)
	}

	input := frame
	if w, h, scaled := ScaledSize(frame.Width, frame.Height, e.maxDim); scaled {
		resized, err := e.renderer.Resize(frame, w, h)
		if err != nil {
			return model.DetectionResult{}, fmt.Errorf("failed to resize frame: %w", err)
		}
		input = resized
	}

	start := time.Now()
	detections, err := detector.Detect(input)
	if err != nil {
		return model.DetectionResult{}, fmt.Errorf("%s model: %w", slot.Model, err)
	}
	e.metrics.InferenceObserved(string(slot.Model), time.Since(start))

	annotated, err := e.renderer.Annotate(input, detections)
	if err != nil {
		return model.DetectionResult{}, fmt.Errorf("failed to annotate frame: %w", err)
	}

	counts := Classify(detections)
	if counts.Total() > 0 {
		e.logger.Debug("%s: scratches=%d dents=%d other=%d", station, counts.Scratch, counts.Dent, counts.Other)
	}

	return model.DetectionResult{
		Annotated:  annotated,
		Counts:     counts,
		Detections: detections,
	}, nil
}

// Bucket is where a detection label is counted.
type Bucket int

const (
	BucketSkip Bucket = iota
	BucketScratch
	BucketDent
	BucketOther
)

// ClassifyLabel applies the counting precedence: good, scratch, dent, then
// everything else lands in the other bucket.
func ClassifyLabel(label string) Bucket {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "good"):
		return BucketSkip
	case strings.Contains(l, "scratch"):
		return BucketScratch
	case strings.Contains(l, "dent"):
		return BucketDent
	default:
		return BucketOther
	}
}

// Classify tallies detections into counters.
func Classify(detections []model.Detection) model.Counts {
	var c model.Counts
	for _, d := range detections {
		switch ClassifyLabel(d.Label) {
		case BucketScratch:
			c.Scratch++
		case BucketDent:
			c.Dent++
		case BucketOther:
			c.Other++
		}
	}
	return c
}

// ScaledSize fits width x height within maxDim on the longest side, keeping
// the aspect ratio. scaled is false when no resize is needed.
func ScaledSize(width, height, maxDim int) (w, h int, scaled bool) {
	longest := width
	if height > longest {
		longest = height
	}
	if maxDim <= 0 || longest <= maxDim {
		return width, height, false
	}

	scale := float64(maxDim) / float64(longest)
	w = int(float64(width) * scale)
	h = int(float64(height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h, true
}
