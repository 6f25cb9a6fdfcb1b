// Package caption classifies a screen frame into one of a fixed set of
// scene descriptions ("a screenshot of a web browser with search bar", ...).
package caption

import (
	"context"
	"math"
	"sort"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// DefaultScenes are the scene templates the classifier ranks.
var DefaultScenes = []string{
	"a screenshot of a WhatsApp chat conversation",
	"a screenshot of a file explorer with folders and files",
	"a screenshot of a web browser with search bar",
	"a screenshot of a desktop with icons",
	"a screenshot of a video player",
	"a screenshot of a code editor or terminal",
	"a screenshot of social media application",
	"a screenshot of email application",
	"a screenshot of settings menu",
	"a screenshot of empty desktop wallpaper",
	"a screenshot of gaming application",
	"a screenshot of document viewer or PDF reader",
}

// Label is one ranked scene description.
type Label struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Captioner ranks scene descriptions for a frame.
type Captioner interface {
	// Caption returns at most topK labels, best first. topK <= 0 returns all.
	Caption(ctx context.Context, frame *screen.Frame, topK int) ([]Label, error)

	// Close releases resources.
	Close() error
}

// Rank pairs scenes with scores and returns the topK best, confidences
// rounded to three decimals.
func Rank(scenes []string, scores []float64, topK int) []Label {
	n := min(len(scenes), len(scores))
	labels := make([]Label, n)
	for i := range n {
		labels[i] = Label{Text: scenes[i], Confidence: math.Round(scores[i]*1000) / 1000}
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Confidence > labels[j].Confidence
	})
	if topK > 0 && topK < len(labels) {
		labels = labels[:topK]
	}
	return labels
}

// Softmax converts logits to probabilities.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxv := logits[0]
	for _, v := range logits[1:] {
		maxv = max(maxv, v)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Static returns fixed labels. Used in tests and replay.
type Static struct {
	Labels []Label
	Err    error
}

// Caption implements Captioner.
func (s *Static) Caption(ctx context.Context, frame *screen.Frame, topK int) ([]Label, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := append([]Label(nil), s.Labels...)
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out, nil
}

// Close implements Captioner.
func (s *Static) Close() error { return nil }

var _ Captioner = (*Static)(nil)
