package detection

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gocv.io/x/gocv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// YOLOConfig holds YOLO detector configuration.
type YOLOConfig struct {
	ModelPath        string   `yaml:"model_path"`
	LabelsPath       string   `yaml:"labels_path"` // names file or dataset YAML
	ConfidenceThresh float32  `yaml:"confidence"`
	NMSThresh        float32  `yaml:"nms"`
	InputWidth       int      `yaml:"input_width"`
	InputHeight      int      `yaml:"input_height"`
	Clickable        []string `yaml:"clickable"`
}

// DefaultYOLOConfig returns defaults for the custom screen-element model.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/screen_detector.onnx",
		LabelsPath:       "models/data.yaml",
		ConfidenceThresh: 0.4,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
		Clickable:        DefaultClickable,
	}
}

// YOLODetector runs a YOLOv8 ONNX export through the OpenCV DNN module.
type YOLODetector struct {
	net       gocv.Net
	config    YOLOConfig
	labels    []string
	clickable AllowList
	mu        sync.Mutex
	inputSize image.Point
	logger    *slog.Logger
}

// NewYOLO loads the model and label names.
func NewYOLO(fs afero.Fs, cfg YOLOConfig, logger *slog.Logger) (*YOLODetector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ok, _ := afero.Exists(fs, cfg.ModelPath); !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	labels, err := LoadLabels(fs, cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	d := &YOLODetector{
		net:       net,
		config:    cfg,
		labels:    labels,
		clickable: NewAllowList(cfg.Clickable...),
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		logger:    logger.With("component", "detection.yolo"),
	}
	d.logger.Info("yolo detector loaded",
		"model", cfg.ModelPath,
		"classes", len(labels),
		"confidence", cfg.ConfidenceThresh)
	return d, nil
}

// Labels returns the class names in model order.
func (d *YOLODetector) Labels() []string {
	return append([]string(nil), d.labels...)
}

// Detect runs the network over the frame.
func (d *YOLODetector) Detect(ctx context.Context, frame *screen.Frame) ([]DetectedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := frame.Mat()
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, screen.ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	objs := d.parseOutput(output, float32(img.Cols()), float32(img.Rows()))
	d.logger.Debug("detections", "count", len(objs))
	return MarkClickable(objs, d.clickable), nil
}

// parseOutput decodes a [1, 4+classes, anchors] YOLOv8 tensor.
func (d *YOLODetector) parseOutput(output gocv.Mat, imgW, imgH float32) []DetectedObject {
	dims := output.Size()
	if len(dims) != 3 {
		return nil
	}
	attrs, anchors := dims[1], dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil
	}

	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)
	sx := imgW / float32(d.config.InputWidth)
	sy := imgH / float32(d.config.InputHeight)

	for i := 0; i < anchors; i++ {
		best, bestID := float32(0), 0
		for c := 4; c < attrs; c++ {
			if score := data[c*anchors+i]; score > best {
				best, bestID = score, c-4
			}
		}
		if best < d.config.ConfidenceThresh {
			continue
		}

		cx, cy := data[i], data[anchors+i]
		w, h := data[2*anchors+i], data[3*anchors+i]
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		confidences = append(confidences, best)
		classIDs = append(classIDs, bestID)
	}
	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.config.ConfidenceThresh, d.config.NMSThresh)
	sort.Ints(indices)

	objs := make([]DetectedObject, 0, len(indices))
	for _, idx := range indices {
		r := boxes[idx]
		objs = append(objs, NewObject(
			Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
			classIDs[idx],
			d.label(classIDs[idx]),
			float64(confidences[idx]),
		))
	}
	return objs
}

func (d *YOLODetector) label(id int) string {
	if id >= 0 && id < len(d.labels) {
		return d.labels[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// LoadLabels reads class names from a dataset YAML (`names:` as a list or an
// index map) or from a plain text file with one name per line.
func LoadLabels(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseDatasetNames(data)
	}

	var labels []string
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	return labels, nil
}

func parseDatasetNames(data []byte) ([]string, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse labels yaml: %w", err)
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, fmt.Errorf("decode names: %w", err)
		}
		if len(names) == 0 {
			return nil, ErrNoLabels
		}
		return names, nil
	case yaml.MappingNode:
		var byID map[int]string
		if err := doc.Names.Decode(&byID); err != nil {
			return nil, fmt.Errorf("decode names: %w", err)
		}
		if len(byID) == 0 {
			return nil, ErrNoLabels
		}
		maxID := 0
		for id := range byID {
			if id > maxID {
				maxID = id
			}
		}
		names := make([]string, maxID+1)
		for id, n := range byID {
			if id >= 0 {
				names[id] = n
			}
		}
		return names, nil
	}
	return nil, ErrNoLabels
}

var _ Detector = (*YOLODetector)(nil)
