package caption

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/teslashibe/go-mimi/pkg/inference"
	"github.com/teslashibe/go-mimi/pkg/screen"
)

// VisionCaptioner asks a multimodal model which scene template fits best.
// It needs no local model files, at the cost of a network round trip.
type VisionCaptioner struct {
	provider inference.Provider
	scenes   []string
	quality  int
	logger   *slog.Logger
}

// NewVision creates a captioner over provider. Empty scenes uses
// DefaultScenes.
func NewVision(provider inference.Provider, scenes []string, logger *slog.Logger) *VisionCaptioner {
	if len(scenes) == 0 {
		scenes = DefaultScenes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionCaptioner{
		provider: provider,
		scenes:   scenes,
		quality:  80,
		logger:   logger.With("component", "caption.vision"),
	}
}

// Prompt builds the numbered multiple-choice question.
func (v *VisionCaptioner) Prompt() string {
	var b strings.Builder
	b.WriteString("Which description best matches this screenshot? Reply with the number only.\n")
	for i, s := range v.scenes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

// Caption implements Captioner.
func (v *VisionCaptioner) Caption(ctx context.Context, frame *screen.Frame, topK int) ([]Label, error) {
	jpeg, err := frame.JPEG(v.quality)
	if err != nil {
		return nil, err
	}
	resp, err := v.provider.Vision(ctx, &inference.VisionRequest{
		JPEG:      jpeg,
		Prompt:    v.Prompt(),
		MaxTokens: 20,
	})
	if err != nil {
		return nil, fmt.Errorf("vision caption: %w", err)
	}

	scores := ScoreReply(v.scenes, resp.Content)
	v.logger.Debug("vision caption", "reply", resp.Content, "latency_ms", resp.LatencyMs)
	return Rank(v.scenes, scores, topK), nil
}

// Close releases the provider.
func (v *VisionCaptioner) Close() error {
	return v.provider.Close()
}

var leadingNumber = regexp.MustCompile(`^\D{0,10}?(\d{1,2})\b`)

// ScoreReply converts a free-text model answer into a probability per
// scene. A leading option number wins outright; otherwise scenes are scored
// by how many of their distinctive words the reply mentions. A reply that
// matches nothing spreads probability evenly.
func ScoreReply(scenes []string, reply string) []float64 {
	scores := make([]float64, len(scenes))
	if len(scenes) == 0 {
		return scores
	}

	reply = strings.ToLower(strings.TrimSpace(reply))
	if m := leadingNumber.FindStringSubmatch(reply); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(scenes) {
			scores[n-1] = 1
			return scores
		}
	}

	var total float64
	for i, s := range scenes {
		for _, w := range sceneWords(s) {
			if strings.Contains(reply, w) {
				scores[i]++
			}
		}
		total += scores[i]
	}
	if total == 0 {
		for i := range scores {
			scores[i] = 1 / float64(len(scores))
		}
		return scores
	}
	for i := range scores {
		scores[i] /= total
	}
	return scores
}

var sceneStopwords = map[string]bool{
	"a": true, "an": true, "of": true, "or": true, "and": true,
	"with": true, "screenshot": true, "application": true,
}

func sceneWords(scene string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(scene)) {
		if !sceneStopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

var _ Captioner = (*VisionCaptioner)(nil)
