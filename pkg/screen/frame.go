// Package screen captures the desktop as fixed-size analysis frames.
//
// A Frame is an RGBA raster in "analysis-image space": the primary monitor
// resized to a fixed resolution (640x640 by default) that the detector and
// captioner operate in. Screen coordinates are recovered with
// automation.Scale.
package screen

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"gocv.io/x/gocv"
)

// DefaultAnalysisSize is the resolution detectors are trained on.
var DefaultAnalysisSize = Size{W: 640, H: 640}

// Size is a width/height pair in pixels.
type Size struct {
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// String implements fmt.Stringer.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.W > 0 && s.H > 0
}

// Point is an integer pixel position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the point the way the analysis summary prints positions.
func (p Point) String() string {
	return fmt.Sprintf("[%d, %d]", p.X, p.Y)
}

// Frame is one captured screen image.
// Frames are never mutated after capture; Clone before retaining one across
// a stage boundary because sources may reuse buffers.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// NewFrame wraps an image, converting it to RGBA when necessary.
func NewFrame(img image.Image, seq uint64, at time.Time) *Frame {
	return &Frame{Image: toRGBA(img), Seq: seq, CapturedAt: at}
}

// Size returns the frame resolution.
func (f *Frame) Size() Size {
	if f == nil || f.Image == nil {
		return Size{}
	}
	b := f.Image.Bounds()
	return Size{W: b.Dx(), H: b.Dy()}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := &Frame{Seq: f.Seq, CapturedAt: f.CapturedAt}
	if f.Image != nil {
		pix := make([]uint8, len(f.Image.Pix))
		copy(pix, f.Image.Pix)
		c.Image = &image.RGBA{Pix: pix, Stride: f.Image.Stride, Rect: f.Image.Rect}
	}
	return c
}

// Mat converts the frame to a BGR gocv.Mat. The caller must Close it.
func (f *Frame) Mat() (gocv.Mat, error) {
	if f == nil || f.Image == nil {
		return gocv.NewMat(), ErrEmptyFrame
	}
	return gocv.ImageToMatRGB(f.Image)
}

// JPEG encodes the frame at the given quality (1-100).
func (f *Frame) JPEG(quality int) ([]byte, error) {
	mat, err := f.Mat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if quality <= 0 || quality > 100 {
		quality = 80
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Resize scales img to size using area interpolation.
func Resize(img image.Image, size Size) (*image.RGBA, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSize, size)
	}
	b := img.Bounds()
	if b.Dx() == size.W && b.Dy() == size.H {
		return toRGBA(img), nil
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(size.W, size.H), 0, 0, gocv.InterpolationArea)

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return toRGBA(out), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
