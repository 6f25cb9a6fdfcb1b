package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MockSink is a mock audio sink for testing.
// It keeps written audio in memory and tracks statistics.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	// Realtime makes Write block for the playback duration of each buffer,
	// so interruption can be exercised without a device.
	Realtime bool

	mu      sync.Mutex
	running bool
	closed  bool
	gen     uint64
	played  []int16

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	clears         atomic.Int64

	// Buffer simulation
	buffer []AudioChunk
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &MockSink{
		cfg:    cfg,
		logger: logger,
		buffer: make([]AudioChunk, 0, 100),
	}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}

	m.running = true
	m.logger.Debug("mock audio sink started")

	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	return nil
}

// Write accepts an audio chunk.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	gen := m.gen
	m.mu.Unlock()

	chunk = m.cfg.Convert(chunk)
	for _, part := range chunk.Split(m.cfg.BufferSize()) {
		if m.Realtime {
			wait := time.Duration(part.Duration() * float64(time.Second))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return ErrCleared
		}
		m.buffer = append(m.buffer, part)
		m.played = append(m.played, part.Samples...)
		m.mu.Unlock()
	}

	m.chunksWritten.Add(1)
	m.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush simulates waiting for playback.
func (m *MockSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = m.buffer[:0]
	return nil
}

// Clear discards buffered audio and interrupts a Write in progress.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.buffer = m.buffer[:0]
	m.clears.Add(1)
	return nil
}

// Played returns every sample accepted so far.
func (m *MockSink) Played() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int16, len(m.played))
	copy(out, m.played)
	return out
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	buffered := int64(0)
	for _, chunk := range m.buffer {
		buffered += int64(len(chunk.Samples))
	}
	m.mu.Unlock()

	return SinkStats{
		ChunksWritten:   m.chunksWritten.Load(),
		SamplesWritten:  m.samplesWritten.Load(),
		Clears:          m.clears.Load(),
		Running:         running,
		Backend:         "mock",
		BufferedSamples: buffered,
	}
}

// Ensure MockSink implements SinkWithStats.
var _ SinkWithStats = (*MockSink)(nil)
