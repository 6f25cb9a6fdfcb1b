package screen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestFrameCloneIsIndependent(t *testing.T) {
	f := NewFrame(solid(4, 4, color.RGBA{R: 10, A: 255}), 7, time.Now())
	c := f.Clone()

	f.Image.Pix[0] = 200

	if c.Image.Pix[0] != 10 {
		t.Errorf("clone shares pixel buffer: got %d", c.Image.Pix[0])
	}
	if c.Seq != 7 {
		t.Errorf("expected seq 7, got %d", c.Seq)
	}
	if c.Size() != (Size{W: 4, H: 4}) {
		t.Errorf("unexpected size %v", c.Size())
	}
}

func TestNilFrame(t *testing.T) {
	var f *Frame
	if f.Clone() != nil {
		t.Error("clone of nil frame should be nil")
	}
	if f.Size().Valid() {
		t.Error("nil frame should have invalid size")
	}
}

func TestPointString(t *testing.T) {
	if got := (Point{X: 320, Y: 100}).String(); got != "[320, 100]" {
		t.Errorf("unexpected point format %q", got)
	}
}

func TestStaticCycles(t *testing.T) {
	red := solid(2, 2, color.RGBA{R: 255, A: 255})
	blue := solid(2, 2, color.RGBA{B: 255, A: 255})
	src := NewStatic(red, blue)
	ctx := context.Background()

	var seqs []uint64
	var firstR []uint8
	for i := 0; i < 3; i++ {
		f, err := src.Capture(ctx)
		if err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
		seqs = append(seqs, f.Seq)
		firstR = append(firstR, f.Image.Pix[0])
	}

	if seqs[0] != 1 || seqs[2] != 3 {
		t.Errorf("unexpected sequence numbers %v", seqs)
	}
	if firstR[0] != 255 || firstR[1] != 0 || firstR[2] != 255 {
		t.Errorf("expected red, blue, red; got R channel %v", firstR)
	}
}

func TestStaticEmpty(t *testing.T) {
	_, err := NewStatic().Capture(context.Background())
	if !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}

func TestLoadStatic(t *testing.T) {
	fs := afero.NewMemMapFs()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(8, 8, color.RGBA{G: 255, A: 255})); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "shots/a.png", buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := LoadStatic(fs, Size{W: 8, H: 8}, "shots/a.png")
	if err != nil {
		t.Fatalf("LoadStatic: %v", err)
	}
	f, err := src.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.Image.Pix[1] != 255 {
		t.Errorf("expected green pixel, got %v", f.Image.Pix[:4])
	}

	if _, err := LoadStatic(fs, Size{W: 8, H: 8}, "missing.png"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStreamStopsAfterDuration(t *testing.T) {
	src := NewStatic(solid(2, 2, color.RGBA{A: 255}))
	frames := Stream(context.Background(), src, StreamConfig{FPS: 100, Duration: 80 * time.Millisecond})

	count := 0
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				if count == 0 {
					t.Error("expected at least one frame")
				}
				return
			}
			count++
		case <-deadline:
			t.Fatal("stream did not close after duration")
		}
	}
}

func TestStreamClosesWhenSourceExhausted(t *testing.T) {
	frames := Stream(context.Background(), NewStatic(), StreamConfig{FPS: 50})
	select {
	case _, ok := <-frames:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}
}

func TestStreamCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	frames := Stream(ctx, NewStatic(solid(2, 2, color.RGBA{A: 255})), StreamConfig{FPS: 20})
	<-frames
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not stop on cancel")
		}
	}
}
