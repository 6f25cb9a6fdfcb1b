package automation

import "errors"

var (
	// ErrNoCoordinates is returned for a click decision without a target position.
	ErrNoCoordinates = errors.New("automation: no coordinates provided")

	// ErrNoText is returned for a type decision without text.
	ErrNoText = errors.New("automation: no text to type")

	// ErrCancelled is returned when the confirmer declined the action.
	ErrCancelled = errors.New("automation: action cancelled")

	// ErrUnsafeInput is returned when the guard rejects text or a name.
	ErrUnsafeInput = errors.New("automation: unsafe input")

	// ErrUnknownAction is returned for an action kind the controller cannot perform.
	ErrUnknownAction = errors.New("automation: unknown action")

	// ErrObjectNotFound is returned when no detected object matches a name.
	ErrObjectNotFound = errors.New("automation: object not on screen")

	// ErrUnknownApp is returned when the launcher has no command for an app.
	ErrUnknownApp = errors.New("automation: unknown application")
)
