// Package automation drives the mouse and keyboard on behalf of the companion.
//
// Coordinates produced by the detector live in analysis-image space (for
// example 640x640). Scale maps them to screen space before any pointer
// movement. A Controller paces actions, asks a Confirmer before acting in
// safety mode and refuses to type text matched by its Guard.
package automation

import (
	"math"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// Button names accepted by Driver.Click.
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "center"
)

// Driver performs raw input events.
type Driver interface {
	// Location returns the pointer position in screen pixels.
	Location() screen.Point
	// MoveTo jumps the pointer to p.
	MoveTo(p screen.Point)
	// Click presses button at the current position.
	Click(button string, double bool)
	// TypeText types text as keystrokes.
	TypeText(text string)
	// KeyTap presses key while holding modifiers.
	KeyTap(key string, modifiers ...string) error
	// ScreenSize returns the primary display size.
	ScreenSize() screen.Size
}

// Scale maps p from an image of size from to a screen of size to, rounding
// to the nearest pixel and clamping into the screen. A zero-sized source
// returns p unchanged.
func Scale(p screen.Point, from, to screen.Size) screen.Point {
	if from.W <= 0 || from.H <= 0 {
		return p
	}
	return screen.Point{
		X: clamp(int(math.Round(float64(p.X)/float64(from.W)*float64(to.W))), to.W),
		Y: clamp(int(math.Round(float64(p.Y)/float64(from.H)*float64(to.H))), to.H),
	}
}

// clamp limits v to [0, n-1]. A non-positive n only clamps below.
func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if n > 0 && v > n-1 {
		return n - 1
	}
	return v
}

// easeOutQuad is the pointer easing curve for smooth moves.
func easeOutQuad(t float64) float64 {
	return -t * (t - 2)
}
