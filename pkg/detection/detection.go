// Package detection finds UI elements (search boxes, send buttons, ...) in
// analysis frames.
package detection

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// Box is an axis-aligned bounding box in analysis-image pixels.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Center returns the integer midpoint of the box.
func (b Box) Center() screen.Point {
	return screen.Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Area returns the box area in square pixels.
func (b Box) Area() int {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// DetectedObject is one labeled detection. It is a value type; copies are
// independent and compare with ==.
type DetectedObject struct {
	Box        Box          `json:"box"`
	ClassID    int          `json:"class_id"`
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"`
	Center     screen.Point `json:"center"`
	Clickable  bool         `json:"clickable"`
}

// NewObject builds a detection, deriving the center and rounding confidence
// to three decimals.
func NewObject(box Box, classID int, label string, confidence float64) DetectedObject {
	return DetectedObject{
		Box:        box,
		ClassID:    classID,
		Label:      label,
		Confidence: math.Round(confidence*1000) / 1000,
		Center:     box.Center(),
	}
}

// String implements fmt.Stringer.
func (o DetectedObject) String() string {
	return fmt.Sprintf("%s@%s(%.2f)", o.Label, o.Center, o.Confidence)
}

// Detector is the interface for UI element detection backends.
type Detector interface {
	// Detect returns the objects found in the frame, in detector order.
	Detect(ctx context.Context, frame *screen.Frame) ([]DetectedObject, error)

	// Close releases resources.
	Close() error
}

// DefaultClickable is the allow-list of interactive element labels.
var DefaultClickable = []string{
	"Search button",
	"WhatsApp Send Button",
	"Search box",
	"WhatsApp Message box",
}

// AllowList is a set of clickable labels.
type AllowList map[string]struct{}

// NewAllowList builds an allow-list from labels.
func NewAllowList(labels ...string) AllowList {
	a := make(AllowList, len(labels))
	for _, l := range labels {
		a[l] = struct{}{}
	}
	return a
}

// Contains reports whether label is clickable.
func (a AllowList) Contains(label string) bool {
	_, ok := a[label]
	return ok
}

// MarkClickable returns a copy of objs with Clickable set from the allow-list.
func MarkClickable(objs []DetectedObject, allow AllowList) []DetectedObject {
	out := make([]DetectedObject, len(objs))
	for i, o := range objs {
		o.Clickable = allow.Contains(o.Label)
		out[i] = o
	}
	return out
}

// Clickable filters the clickable subset, preserving order.
func Clickable(objs []DetectedObject) []DetectedObject {
	var out []DetectedObject
	for _, o := range objs {
		if o.Clickable {
			out = append(out, o)
		}
	}
	return out
}

// FindByName returns the first object whose label contains name,
// case-insensitively.
func FindByName(objs []DetectedObject, name string) (DetectedObject, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return DetectedObject{}, false
	}
	for _, o := range objs {
		if strings.Contains(strings.ToLower(o.Label), needle) {
			return o, true
		}
	}
	return DetectedObject{}, false
}

// Static returns a fixed set of detections. Useful for tests and replays.
type Static struct {
	Objects []DetectedObject
	Err     error
}

// Detect returns a copy of the configured objects.
func (s *Static) Detect(ctx context.Context, frame *screen.Frame) ([]DetectedObject, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]DetectedObject, len(s.Objects))
	copy(out, s.Objects)
	return out, nil
}

// Close is a no-op.
func (s *Static) Close() error { return nil }

var _ Detector = (*Static)(nil)
