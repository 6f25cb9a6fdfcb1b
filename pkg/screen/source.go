package screen

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for Static
	_ "image/png"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/spf13/afero"
)

// Source produces frames on demand.
type Source interface {
	// Capture grabs one frame in analysis-image space.
	Capture(ctx context.Context) (*Frame, error)
}

// Capturer screenshots a physical display and resizes it to the analysis size.
type Capturer struct {
	display int
	size    Size
	seq     atomic.Uint64
	logger  *slog.Logger
}

// CapturerOption configures a Capturer.
type CapturerOption func(*Capturer)

// WithDisplay selects the display index (0 is the primary monitor).
func WithDisplay(index int) CapturerOption {
	return func(c *Capturer) { c.display = index }
}

// WithAnalysisSize sets the output resolution.
func WithAnalysisSize(s Size) CapturerOption {
	return func(c *Capturer) { c.size = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) CapturerOption {
	return func(c *Capturer) { c.logger = l }
}

// NewCapturer creates a screen capturer for the configured display.
func NewCapturer(opts ...CapturerOption) (*Capturer, error) {
	c := &Capturer{size: DefaultAnalysisSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if !c.size.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSize, c.size)
	}
	if n := screenshot.NumActiveDisplays(); c.display < 0 || c.display >= n {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoDisplay, c.display, n)
	}
	c.logger = c.logger.With("component", "screen.capturer")
	c.logger.Info("screen capture ready",
		"display", c.display,
		"bounds", c.Bounds().String(),
		"analysis_size", c.size.String())
	return c, nil
}

// Bounds returns the physical bounds of the captured display.
func (c *Capturer) Bounds() image.Rectangle {
	return screenshot.GetDisplayBounds(c.display)
}

// ScreenSize returns the physical display size.
func (c *Capturer) ScreenSize() Size {
	b := c.Bounds()
	return Size{W: b.Dx(), H: b.Dy()}
}

// Capture grabs the display and resizes it to the analysis size.
func (c *Capturer) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := screenshot.CaptureRect(c.Bounds())
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", c.display, err)
	}
	img, err := Resize(raw, c.size)
	if err != nil {
		return nil, err
	}
	return &Frame{Image: img, Seq: c.seq.Add(1), CapturedAt: time.Now()}, nil
}

// Static replays a fixed list of images in a loop.
// It backs the analyze command and tests.
type Static struct {
	mu     sync.Mutex
	images []*image.RGBA
	next   int
	seq    uint64
}

// NewStatic creates a source from in-memory images.
func NewStatic(images ...image.Image) *Static {
	s := &Static{}
	for _, img := range images {
		s.images = append(s.images, toRGBA(img))
	}
	return s
}

// LoadStatic decodes image files from fs and resizes them to size.
func LoadStatic(fs afero.Fs, size Size, paths ...string) (*Static, error) {
	s := &Static{}
	for _, p := range paths {
		f, err := fs.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		resized, err := Resize(img, size)
		if err != nil {
			return nil, err
		}
		s.images = append(s.images, resized)
	}
	return s, nil
}

// Capture returns the next image, wrapping around at the end.
func (s *Static) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.images) == 0 {
		return nil, ErrNoFrames
	}
	img := s.images[s.next%len(s.images)]
	s.next++
	s.seq++
	return &Frame{Image: img, Seq: s.seq, CapturedAt: time.Now()}, nil
}
