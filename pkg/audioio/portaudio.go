package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSink plays audio through a PortAudio output stream using
// blocking writes of one buffer at a time.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger
	stream *portaudio.Stream
	buf    []int16

	mu      sync.Mutex
	writeMu sync.Mutex
	running bool
	closed  bool
	gen     atomic.Uint64

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
	clears         atomic.Int64
}

// NewPortAudioSink initializes PortAudio and opens the configured output device.
func NewPortAudioSink(cfg Config, logger *slog.Logger) (*PortAudioSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	device, err := outputDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.HighLatencyParameters(nil, device)
	params.Output.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferSize()

	s := &PortAudioSink{
		cfg:    cfg,
		logger: logger,
		buf:    make([]int16, cfg.BufferSize()*cfg.Channels),
	}
	s.stream, err = portaudio.OpenStream(params, s.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}

	logger.Info("portaudio sink created",
		"device", device.Name,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)
	return s, nil
}

func outputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

// Start begins audio playback.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	s.running = true
	return nil
}

// Stop halts playback.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	return s.stream.Stop()
}

// Write plays chunk, returning ErrCleared if Clear is called before the
// last buffer has been handed to the device.
func (s *PortAudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	gen := s.gen.Load()
	converted := s.cfg.Convert(chunk)
	for _, part := range converted.Split(s.cfg.BufferSize()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.gen.Load() != gen {
			return ErrCleared
		}

		n := copy(s.buf, part.Samples)
		clear(s.buf[n:])
		if err := s.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				s.underruns.Add(1)
				continue
			}
			return fmt.Errorf("write stream: %w", err)
		}
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(converted.Samples)))
	return nil
}

// Flush waits for the device latency so the last buffer is audible.
func (s *PortAudioSink) Flush(ctx context.Context) error {
	latency := s.stream.Info().OutputLatency
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(latency):
		return nil
	}
}

// Clear interrupts a Write in progress.
func (s *PortAudioSink) Clear() error {
	s.gen.Add(1)
	s.clears.Add(1)
	return nil
}

// Config returns the audio configuration.
func (s *PortAudioSink) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSink) Name() string {
	return "portaudio"
}

// Close stops playback and releases PortAudio.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Clear()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.Stop()
	err := s.stream.Close()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}

// Stats returns sink statistics.
func (s *PortAudioSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Underruns:      s.underruns.Load(),
		Clears:         s.clears.Load(),
		Running:        running,
		Backend:        "portaudio",
	}
}

var _ SinkWithStats = (*PortAudioSink)(nil)
