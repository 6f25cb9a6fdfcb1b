package audioio

import (
	"context"
	"io"
)

// Sink plays the companion's voice. Writes block until the device (or the
// file, or the mock clock) has accepted the chunk, so Output can interrupt
// speech between buffers.
type Sink interface {
	// Start prepares the device. Starting a running sink is a no-op.
	Start(ctx context.Context) error

	// Stop halts playback. Safe to call more than once.
	Stop() error

	// Write plays chunk, converting its rate and channels to Config.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush waits until everything written has been played.
	Flush(ctx context.Context) error

	// Clear drops buffered audio. A Write in progress returns ErrCleared.
	Clear() error

	Config() Config

	// Name is the backend: "portaudio", "wavfile" or "mock".
	Name() string

	io.Closer
}

// SinkStats are playback counters.
type SinkStats struct {
	Backend         string `json:"backend"`
	Running         bool   `json:"running"`
	ChunksWritten   int64  `json:"chunks_written"`
	SamplesWritten  int64  `json:"samples_written"`
	BufferedSamples int64  `json:"buffered_samples"`
	Underruns       int64  `json:"underruns"`
	Clears          int64  `json:"clears"`
}

// SinkWithStats is a Sink that reports SinkStats.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
