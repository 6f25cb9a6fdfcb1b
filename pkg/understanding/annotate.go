package understanding

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

var (
	clickableColor = color.RGBA{R: 0, G: 220, B: 0, A: 255}
	objectColor    = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	bannerColor    = color.RGBA{A: 255}
	textColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const bannerHeight = 22

// Annotate draws a onto a copy of frame: every object boxed and labeled
// with its confidence (clickable elements in green, the rest in orange)
// and the scene label in a banner along the top. A nil analysis returns
// an unmarked copy. Boxes are rescaled when the analysis was made at a
// different resolution than frame.
func Annotate(frame *screen.Frame, a *ScreenAnalysis) (*screen.Frame, error) {
	mat, err := frame.Mat()
	defer mat.Close()
	if err != nil {
		return nil, err
	}

	if a != nil {
		size := frame.Size()
		sx, sy := 1.0, 1.0
		if a.ImageSize.Valid() {
			sx = float64(size.W) / float64(a.ImageSize.W)
			sy = float64(size.H) / float64(a.ImageSize.H)
		}

		for _, o := range a.Objects {
			c := objectColor
			if o.Clickable {
				c = clickableColor
			}
			r := image.Rect(
				int(float64(o.Box.X1)*sx), int(float64(o.Box.Y1)*sy),
				int(float64(o.Box.X2)*sx), int(float64(o.Box.Y2)*sy))
			gocv.Rectangle(&mat, r, c, 2)

			label := fmt.Sprintf("%s %.2f", o.Label, o.Confidence)
			gocv.PutText(&mat, label, image.Pt(r.Min.X, max(r.Min.Y-5, bannerHeight+12)),
				gocv.FontHersheySimplex, 0.45, c, 1)
		}

		if a.SceneLabel != "" {
			gocv.Rectangle(&mat, image.Rect(0, 0, size.W, bannerHeight), bannerColor, -1)
			gocv.PutText(&mat, a.SceneLabel, image.Pt(6, 16), gocv.FontHersheySimplex, 0.5, textColor, 1)
		}
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return screen.NewFrame(img, frame.Seq, frame.CapturedAt), nil
}
