package reaction

import (
	"context"
	"errors"
)

var (
	// ErrQueueFull finishes a task dropped because the queue was at
	// capacity.
	ErrQueueFull = errors.New("reaction: queue full")

	// ErrCoalesced finishes a task refused because a reaction was already
	// outstanding.
	ErrCoalesced = errors.New("reaction: coalesced")

	// ErrStopped finishes a task offered to, or still queued in, a stopped
	// scheduler.
	ErrStopped = errors.New("reaction: scheduler stopped")

	// ErrPanic wraps a recovered handler panic.
	ErrPanic = errors.New("reaction: handler panicked")
)

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
