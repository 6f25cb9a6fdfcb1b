// Package understanding merges object detection and scene captioning into
// one ScreenAnalysis per frame, plus the text summary handed to the
// language model.
package understanding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-mimi/pkg/caption"
	"github.com/teslashibe/go-mimi/pkg/detection"
	"github.com/teslashibe/go-mimi/pkg/screen"
)

// ScreenAnalysis is the result of analyzing one frame. Immutable after
// creation.
type ScreenAnalysis struct {
	FrameSeq        uint64                     `json:"frame_seq"`
	SceneLabel      string                     `json:"scene"`
	SceneConfidence float64                    `json:"scene_confidence"`
	SceneRanking    []caption.Label            `json:"scene_ranking,omitempty"`
	Objects         []detection.DetectedObject `json:"objects"`
	Clickable       []detection.DetectedObject `json:"clickable"`
	Summary         string                     `json:"summary"`
	ImageSize       screen.Size                `json:"image_size"`
	AnalyzedAt      time.Time                  `json:"analyzed_at"`
	Elapsed         time.Duration              `json:"elapsed"`
}

// New builds an analysis from raw collaborator output. Clickable is derived
// from the objects' tags and the summary is formatted.
func New(scene []caption.Label, objects []detection.DetectedObject, size screen.Size) *ScreenAnalysis {
	a := &ScreenAnalysis{
		SceneRanking: scene,
		Objects:      objects,
		Clickable:    detection.Clickable(objects),
		ImageSize:    size,
		AnalyzedAt:   time.Now(),
	}
	if len(scene) > 0 {
		a.SceneLabel = scene[0].Text
		a.SceneConfidence = scene[0].Confidence
	}
	a.Summary = FormatSummary(a)
	return a
}

// ObjectCounts returns how many objects carry each label.
func (a *ScreenAnalysis) ObjectCounts() map[string]int {
	counts := make(map[string]int, len(a.Objects))
	for _, o := range a.Objects {
		counts[o.Label]++
	}
	return counts
}

// Find returns the first object whose label contains name.
func (a *ScreenAnalysis) Find(name string) (detection.DetectedObject, bool) {
	return detection.FindByName(a.Objects, name)
}

// FormatSummary renders the analysis as the text block the language model
// reads:
//
//	SCREEN ANALYSIS:
//
//	Scene: a screenshot of a web browser with search bar
//	Confidence: 87.3%
//
//	Detected Objects (1):
//	  1. Search box at position [320, 100] (confidence: 0.91)
//
//	Clickable Elements (1):
//	  1. Search box at position [320, 100]
func FormatSummary(a *ScreenAnalysis) string {
	var b strings.Builder
	b.WriteString("SCREEN ANALYSIS:\n\n")
	fmt.Fprintf(&b, "Scene: %s\n", a.SceneLabel)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n\n", a.SceneConfidence*100)

	fmt.Fprintf(&b, "Detected Objects (%d):", len(a.Objects))
	if len(a.Objects) == 0 {
		b.WriteString("\n  (none)")
	}
	for i, o := range a.Objects {
		fmt.Fprintf(&b, "\n  %d. %s at position %s (confidence: %g)", i+1, o.Label, o.Center, o.Confidence)
	}

	fmt.Fprintf(&b, "\n\nClickable Elements (%d):", len(a.Clickable))
	if len(a.Clickable) == 0 {
		b.WriteString("\n  (none)")
	}
	for i, o := range a.Clickable {
		fmt.Fprintf(&b, "\n  %d. %s at position %s", i+1, o.Label, o.Center)
	}
	return b.String()
}

// Analyzer composes a detector and a captioner.
type Analyzer struct {
	detector  detection.Detector
	captioner caption.Captioner
	topK      int
	logger    *slog.Logger
}

// NewAnalyzer creates an analyzer. topK is the number of scene labels kept
// in SceneRanking.
func NewAnalyzer(d detection.Detector, c caption.Captioner, topK int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 1
	}
	return &Analyzer{
		detector:  d,
		captioner: c,
		topK:      topK,
		logger:    logger.With("component", "understanding"),
	}
}

// Analyze runs both collaborators over frame. Any collaborator failure is
// returned; callers skip the frame.
func (a *Analyzer) Analyze(ctx context.Context, frame *screen.Frame) (*ScreenAnalysis, error) {
	if frame == nil || frame.Image == nil {
		return nil, screen.ErrEmptyFrame
	}
	start := time.Now()

	scene, err := a.captioner.Caption(ctx, frame, a.topK)
	if err != nil {
		return nil, fmt.Errorf("caption: %w", err)
	}
	objects, err := a.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	analysis := New(scene, objects, frame.Size())
	analysis.FrameSeq = frame.Seq
	analysis.Elapsed = time.Since(start)

	a.logger.Debug("frame analyzed",
		"seq", frame.Seq,
		"scene", analysis.SceneLabel,
		"objects", len(analysis.Objects),
		"clickable", len(analysis.Clickable),
		"elapsed_ms", analysis.Elapsed.Milliseconds())
	return analysis, nil
}

// Close releases both collaborators.
func (a *Analyzer) Close() error {
	return errors.Join(a.detector.Close(), a.captioner.Close())
}
