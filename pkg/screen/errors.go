package screen

import "errors"

var (
	// ErrEmptyFrame is returned when a frame carries no image.
	ErrEmptyFrame = errors.New("screen: empty frame")

	// ErrInvalidSize is returned for non-positive analysis sizes.
	ErrInvalidSize = errors.New("screen: invalid size")

	// ErrNoDisplay is returned when the requested display does not exist.
	ErrNoDisplay = errors.New("screen: display not found")

	// ErrNoFrames is returned by a static source with nothing to replay.
	ErrNoFrames = errors.New("screen: no frames")
)
