package understanding

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimi/pkg/caption"
	"github.com/teslashibe/go-mimi/pkg/detection"
	"github.com/teslashibe/go-mimi/pkg/screen"
)

func searchBox() detection.DetectedObject {
	o := detection.NewObject(detection.Box{X1: 300, Y1: 90, X2: 340, Y2: 110}, 2, "Search box", 0.912)
	o.Clickable = true
	return o
}

func icon() detection.DetectedObject {
	return detection.NewObject(detection.Box{X1: 10, Y1: 10, X2: 30, Y2: 30}, 5, "Folder icon", 0.5)
}

func TestFormatSummary(t *testing.T) {
	a := New([]caption.Label{{Text: "a screenshot of a web browser with search bar", Confidence: 0.873}},
		[]detection.DetectedObject{searchBox(), icon()}, screen.DefaultAnalysisSize)

	want := "SCREEN ANALYSIS:\n\n" +
		"Scene: a screenshot of a web browser with search bar\n" +
		"Confidence: 87.3%\n\n" +
		"Detected Objects (2):\n" +
		"  1. Search box at position [320, 100] (confidence: 0.912)\n" +
		"  2. Folder icon at position [20, 20] (confidence: 0.5)\n\n" +
		"Clickable Elements (1):\n" +
		"  1. Search box at position [320, 100]"
	assert.Equal(t, want, a.Summary)
	assert.Equal(t, "a screenshot of a web browser with search bar", a.SceneLabel)
	require.Len(t, a.Clickable, 1)
	assert.Equal(t, "Search box", a.Clickable[0].Label)
}

func TestFormatSummaryEmpty(t *testing.T) {
	a := New(nil, nil, screen.DefaultAnalysisSize)
	assert.Contains(t, a.Summary, "Detected Objects (0):\n  (none)")
	assert.Contains(t, a.Summary, "Clickable Elements (0):\n  (none)")
}

func TestObjectCountsAndFind(t *testing.T) {
	a := New(nil, []detection.DetectedObject{searchBox(), icon(), icon()}, screen.DefaultAnalysisSize)
	assert.Equal(t, map[string]int{"Search box": 1, "Folder icon": 2}, a.ObjectCounts())

	o, ok := a.Find("search")
	assert.True(t, ok)
	assert.Equal(t, screen.Point{X: 320, Y: 100}, o.Center)

	_, ok = a.Find("send button")
	assert.False(t, ok)
}

func TestAnalyzer(t *testing.T) {
	det := &detection.Static{Objects: []detection.DetectedObject{searchBox()}}
	capt := &caption.Static{Labels: []caption.Label{{Text: "a screenshot of a desktop with icons", Confidence: 0.6}}}
	an := NewAnalyzer(det, capt, 3, nil)

	frame := screen.NewFrame(image.NewRGBA(image.Rect(0, 0, 640, 640)), 7, time.Now())
	a, err := an.Analyze(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), a.FrameSeq)
	assert.Equal(t, "a screenshot of a desktop with icons", a.SceneLabel)
	assert.Equal(t, screen.Size{W: 640, H: 640}, a.ImageSize)
	assert.Len(t, a.Objects, 1)
}

func TestAnalyzerPropagatesFailures(t *testing.T) {
	frame := screen.NewFrame(image.NewRGBA(image.Rect(0, 0, 8, 8)), 1, time.Now())
	boom := errors.New("boom")

	an := NewAnalyzer(&detection.Static{Err: boom}, &caption.Static{}, 1, nil)
	_, err := an.Analyze(context.Background(), frame)
	assert.ErrorIs(t, err, boom)

	an = NewAnalyzer(&detection.Static{}, &caption.Static{Err: boom}, 1, nil)
	_, err = an.Analyze(context.Background(), frame)
	assert.ErrorIs(t, err, boom)

	_, err = an.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, screen.ErrEmptyFrame)
}

type closeFailDetector struct {
	*detection.Static
	err error
}

func (d closeFailDetector) Close() error { return d.err }

type closeFailCaptioner struct {
	*caption.Static
	err error
}

func (c closeFailCaptioner) Close() error { return c.err }

func TestAnalyzerCloseReportsBothFailures(t *testing.T) {
	derr := errors.New("detector close")
	cerr := errors.New("captioner close")

	an := NewAnalyzer(closeFailDetector{&detection.Static{}, derr}, closeFailCaptioner{&caption.Static{}, cerr}, 1, nil)
	err := an.Close()
	assert.ErrorIs(t, err, derr)
	assert.ErrorIs(t, err, cerr)

	an = NewAnalyzer(&detection.Static{}, closeFailCaptioner{&caption.Static{}, cerr}, 1, nil)
	assert.ErrorIs(t, an.Close(), cerr)

	an = NewAnalyzer(&detection.Static{}, &caption.Static{}, 1, nil)
	assert.NoError(t, an.Close())
}

func whiteFrame(w, h int) *screen.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return screen.NewFrame(img, 7, time.Now())
}

func countChanged(a, b *image.RGBA) int {
	n := 0
	for i := 0; i+3 < len(a.Pix); i += 4 {
		if a.Pix[i] != b.Pix[i] || a.Pix[i+1] != b.Pix[i+1] || a.Pix[i+2] != b.Pix[i+2] {
			n++
		}
	}
	return n
}

func TestAnnotateDrawsObjects(t *testing.T) {
	frame := whiteFrame(640, 640)
	a := New([]caption.Label{{Text: "a screenshot of a web browser", Confidence: 0.9}},
		[]detection.DetectedObject{searchBox(), icon()}, screen.DefaultAnalysisSize)

	out, err := Annotate(frame, a)
	require.NoError(t, err)
	assert.Equal(t, frame.Size(), out.Size())
	assert.Equal(t, frame.Seq, out.Seq)

	assert.Positive(t, countChanged(frame.Image, out.Image))
	assert.Zero(t, countChanged(frame.Image, whiteFrame(640, 640).Image), "input frame must not be drawn on")

	// The search box outline is green, the icon outline orange.
	box := out.Image.RGBAAt(300, 100)
	assert.Greater(t, box.G, box.R)
	folder := out.Image.RGBAAt(10, 25)
	assert.Greater(t, folder.R, folder.B)

	// Scene banner.
	banner := out.Image.RGBAAt(600, 2)
	assert.Less(t, banner.R, uint8(50))
}

func TestAnnotateWithoutAnalysis(t *testing.T) {
	frame := whiteFrame(64, 48)
	out, err := Annotate(frame, nil)
	require.NoError(t, err)
	assert.Zero(t, countChanged(frame.Image, out.Image))

	_, err = Annotate(&screen.Frame{}, nil)
	assert.ErrorIs(t, err, screen.ErrEmptyFrame)
}
