package publish

import "errors"

var (
	// ErrNotConnected is returned when publishing without a broker connection.
	ErrNotConnected = errors.New("publish: mqtt not connected")

	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("publish: mqtt timeout")
)
