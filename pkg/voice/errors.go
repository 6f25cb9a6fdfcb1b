package voice

import "errors"

var (
	// ErrInterrupted is returned when Stop cut an utterance short or
	// dropped it before it started.
	ErrInterrupted = errors.New("voice: utterance interrupted")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("voice: output closed")
)
