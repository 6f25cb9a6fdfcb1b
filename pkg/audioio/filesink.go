package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// FileSink records each utterance as a WAV file instead of playing it.
// Audio written between two Flush calls forms one file.
type FileSink struct {
	cfg    Config
	fs     afero.Fs
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	pending []int16
	files   []string

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	clears         atomic.Int64
}

// NewFileSink creates the output directory and returns a sink writing into it.
func NewFileSink(cfg Config, fs afero.Fs, logger *slog.Logger) (*FileSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fs.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileSink{cfg: cfg, fs: fs, logger: logger}, nil
}

// Start begins accepting audio.
func (s *FileSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	return nil
}

// Stop halts audio acceptance.
func (s *FileSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Write buffers chunk for the current utterance.
func (s *FileSink) Write(ctx context.Context, chunk AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	converted := s.cfg.Convert(chunk)
	s.pending = append(s.pending, converted.Samples...)
	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(converted.Samples)))
	return nil
}

// Flush writes the buffered utterance to a new file.
func (s *FileSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	name := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("utterance-%04d.wav", len(s.files)+1))
	f, err := s.fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, s.cfg.SampleRate, 16, s.cfg.Channels, 1)
	data := make([]int, len(s.pending))
	for i, v := range s.pending {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: s.cfg.Channels, SampleRate: s.cfg.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", name, err)
	}

	s.pending = s.pending[:0]
	s.files = append(s.files, name)
	s.logger.Debug("utterance recorded", "file", name)
	return nil
}

// Clear discards the buffered utterance.
func (s *FileSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.pending[:0]
	s.clears.Add(1)
	return nil
}

// Files returns the paths written so far.
func (s *FileSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Config returns the audio configuration.
func (s *FileSink) Config() Config {
	return s.cfg
}

// Name returns "wavfile".
func (s *FileSink) Name() string {
	return "wavfile"
}

// Close releases resources.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.running = false
	return nil
}

// Stats returns sink statistics.
func (s *FileSink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SinkStats{
		ChunksWritten:   s.chunksWritten.Load(),
		SamplesWritten:  s.samplesWritten.Load(),
		Clears:          s.clears.Load(),
		Running:         s.running,
		Backend:         "wavfile",
		BufferedSamples: int64(len(s.pending)),
	}
}

var _ SinkWithStats = (*FileSink)(nil)
