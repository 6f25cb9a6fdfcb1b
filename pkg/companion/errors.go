package companion

import "errors"

var (
	// ErrRunning is returned by Run while a run is in progress.
	ErrRunning = errors.New("companion: already running")

	// ErrFinished is returned by Run after the companion has shut down.
	ErrFinished = errors.New("companion: already finished")

	// ErrNoFrame is returned when no frame has been captured yet.
	ErrNoFrame = errors.New("companion: no frame captured")

	// ErrEmptyMessage is returned by Say for blank text.
	ErrEmptyMessage = errors.New("companion: empty message")

	// ErrMissingDependency is returned by New when a required collaborator
	// is nil.
	ErrMissingDependency = errors.New("companion: missing dependency")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("companion: invalid config")
)
