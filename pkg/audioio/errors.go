package audioio

import "errors"

var (
	// ErrCleared is returned by Write when Clear interrupted it.
	ErrCleared = errors.New("audioio: playback cleared")

	// ErrNotRunning is returned when writing to a sink that is not started.
	ErrNotRunning = errors.New("audioio: sink not running")

	// ErrDeviceNotFound is returned when the configured device does not exist.
	ErrDeviceNotFound = errors.New("audioio: output device not found")
)
