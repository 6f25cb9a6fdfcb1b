package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/spf13/afero"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// CLIP preprocessing constants (ViT-B/32).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// CLIPConfig configures the CLIP captioner.
type CLIPConfig struct {
	ModelPath      string  `yaml:"model_path"`      // ONNX image encoder
	EmbeddingsPath string  `yaml:"embeddings_path"` // precomputed text embeddings
	InputSize      int     `yaml:"input_size"`
	LogitScale     float64 `yaml:"logit_scale"`
}

// DefaultCLIPConfig returns defaults for a ViT-B/32 export.
func DefaultCLIPConfig() CLIPConfig {
	return CLIPConfig{
		ModelPath:      "models/clip_image_vitb32.onnx",
		EmbeddingsPath: "models/clip_scenes.json",
		InputSize:      224,
		LogitScale:     100,
	}
}

// Embeddings is the on-disk text embedding file:
//
//	{"model": "ViT-B/32", "scenes": [{"text": "...", "embedding": [...]}]}
type Embeddings struct {
	Model  string       `json:"model"`
	Scenes []SceneEmbed `json:"scenes"`
}

// SceneEmbed is one template and its text embedding.
type SceneEmbed struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// LoadEmbeddings reads and L2-normalizes a text embedding file.
func LoadEmbeddings(fs afero.Fs, path string) (*Embeddings, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	var e Embeddings
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse embeddings %s: %w", path, err)
	}
	if len(e.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	dim := len(e.Scenes[0].Embedding)
	for i := range e.Scenes {
		if len(e.Scenes[i].Embedding) != dim || dim == 0 {
			return nil, fmt.Errorf("%w: scene %q", ErrDimensionMismatch, e.Scenes[i].Text)
		}
		normalize(e.Scenes[i].Embedding)
	}
	return &e, nil
}

// Texts returns the scene templates in file order.
func (e *Embeddings) Texts() []string {
	out := make([]string, len(e.Scenes))
	for i, s := range e.Scenes {
		out[i] = s.Text
	}
	return out
}

// Similarities returns softmax(scale * cos(image, text_i)) for every scene.
func (e *Embeddings) Similarities(image []float32, scale float64) ([]float64, error) {
	if len(e.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	if len(image) != len(e.Scenes[0].Embedding) {
		return nil, fmt.Errorf("%w: image %d, text %d", ErrDimensionMismatch, len(image), len(e.Scenes[0].Embedding))
	}
	img := append([]float32(nil), image...)
	normalize(img)

	logits := make([]float64, len(e.Scenes))
	for i, s := range e.Scenes {
		var dot float64
		for j, v := range s.Embedding {
			dot += float64(v) * float64(img[j])
		}
		logits[i] = scale * dot
	}
	return Softmax(logits), nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}

// CLIPCaptioner ranks scenes with a CLIP image encoder run through the
// OpenCV DNN module.
type CLIPCaptioner struct {
	net    gocv.Net
	config CLIPConfig
	embeds *Embeddings
	mu     sync.Mutex
	logger *slog.Logger
}

// NewCLIP loads the image encoder and text embeddings.
func NewCLIP(fs afero.Fs, cfg CLIPConfig, logger *slog.Logger) (*CLIPCaptioner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 224
	}
	if cfg.LogitScale <= 0 {
		cfg.LogitScale = 100
	}
	if ok, _ := afero.Exists(fs, cfg.ModelPath); !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}
	embeds, err := LoadEmbeddings(fs, cfg.EmbeddingsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	c := &CLIPCaptioner{
		net:    net,
		config: cfg,
		embeds: embeds,
		logger: logger.With("component", "caption.clip"),
	}
	c.logger.Info("clip captioner loaded", "model", cfg.ModelPath, "scenes", len(embeds.Scenes))
	return c, nil
}

// Caption implements Captioner.
func (c *CLIPCaptioner) Caption(ctx context.Context, frame *screen.Frame, topK int) ([]Label, error) {
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

	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.config.InputSize
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, true)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("blob data: %w", err)
	}
	plane := size * size
	for ch := range 3 {
		p := data[ch*plane : (ch+1)*plane]
		for i := range p {
			p[i] = (p[i] - clipMean[ch]) / clipStd[ch]
		}
	}

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	feat, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("encoder output: %w", err)
	}
	scores, err := c.embeds.Similarities(feat, c.config.LogitScale)
	if err != nil {
		return nil, err
	}
	return Rank(c.embeds.Texts(), scores, topK), nil
}

// Close releases the network.
func (c *CLIPCaptioner) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}

var _ Captioner = (*CLIPCaptioner)(nil)
