package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"stationagent/internal/config"
	"stationagent/internal/logger"
	"stationagent/internal/model"
	"stationagent/internal/service/ai"
)

// YOLODetector runs a YOLOv8 ONNX export. The output tensor is
// [1, 4+classes, anchors] with boxes as centre x, centre y, width, height in
// input pixels.
type YOLODetector struct {
	mu            sync.Mutex
	net           gocv.Net
	labels        []string
	inputSize     int
	confidence    float32
	nmsThreshold  float32
	maxDetections int
}

// NewYOLODetector loads the model and its newline-separated labels file.
func NewYOLODetector(modelPath, labelsPath string, cfg config.InferenceConfig) (*YOLODetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	labels, err := readLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &YOLODetector{
		net:           net,
		labels:        labels,
		inputSize:     cfg.InputSize,
		confidence:    float32(cfg.Confidence),
		nmsThreshold:  float32(cfg.NMSThreshold),
		maxDetections: cfg.MaxDetections,
	}, nil
}

func readLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read class names: %w", err)
	}
	var labels []string
	for _, line := range strings.Split(string(data), "\n") {
		if l := strings.TrimSpace(line); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no class names in %s", path)
	}
	return labels, nil
}

func (d *YOLODetector) Detect(frame model.Frame) ([]model.Detection, error) {
	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	size := image.Pt(d.inputSize, d.inputSize)
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	channels, anchors := dims[1], dims[2]
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	xScale := float32(frame.Width) / float32(d.inputSize)
	yScale := float32(frame.Height) / float32(d.inputSize)

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
	)
	for i := 0; i < anchors; i++ {
		classID, best := -1, float32(0)
		for c := 4; c < channels; c++ {
			if s := data[c*anchors+i]; s > best {
				classID, best = c-4, s
			}
		}
		if best < d.confidence || classID < 0 {
			continue
		}

		cx, cy := data[i]*xScale, data[anchors+i]*yScale
		w, h := data[2*anchors+i]*xScale, data[3*anchors+i]*yScale
		boxes = append(boxes, image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, best)
		classes = append(classes, classID)
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, d.confidence, d.nmsThreshold)
	sort.Slice(keep, func(a, b int) bool { return scores[keep[a]] > scores[keep[b]] })
	if d.maxDetections > 0 && len(keep) > d.maxDetections {
		keep = keep[:d.maxDetections]
	}

	bounds := image.Rect(0, 0, frame.Width, frame.Height)
	detections := make([]model.Detection, 0, len(keep))
	for _, idx := range keep {
		detections = append(detections, model.Detection{
			Label:      d.label(classes[idx]),
			Confidence: float64(scores[idx]),
			Box:        boxes[idx].Intersect(bounds),
		})
	}
	return detections, nil
}

func (d *YOLODetector) label(classID int) string {
	if classID < len(d.labels) {
		return d.labels[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// Models is the set of loaded detectors.
type Models struct {
	Detectors map[model.ModelKind]ai.Detector
	closers   []*YOLODetector
}

// Close releases every loaded network.
func (m *Models) Close() error {
	var errs []error
	for _, d := range m.closers {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

// LoadModels loads the damage model and, when present, the brake model. A
// missing damage model is an error. A missing brake model is logged and left
// out so the engine can fall back.
func LoadModels(cfg config.InferenceConfig, log *logger.Logger) (*Models, error) {
	models := &Models{Detectors: make(map[model.ModelKind]ai.Detector)}

	damage, err := NewYOLODetector(cfg.DamageModelPath, cfg.DamageLabelsPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: damage: %v", ai.ErrModelNotLoaded, err)
	}
	models.Detectors[model.ModelDamage] = damage
	models.closers = append(models.closers, damage)
	log.Info("Damage model loaded from %s", cfg.DamageModelPath)

	brake, err := NewYOLODetector(cfg.BrakeModelPath, cfg.BrakeLabelsPath, cfg)
	if err != nil {
		log.Warning("Could not load brake model: %v", err)
		return models, nil
	}
	models.Detectors[model.ModelBrake] = brake
	models.closers = append(models.closers, brake)
	log.Info("Brake model loaded from %s", cfg.BrakeModelPath)

	return models, nil
}
