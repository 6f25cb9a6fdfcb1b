package audioio

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
)

// NewSink creates a new audio sink with the given configuration.
// fs is only used by the wavfile backend and may be nil otherwise.
func NewSink(cfg Config, fs afero.Fs, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audioio")

	logger.Info("creating audio sink",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendWAVFile:
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFileSink(cfg, fs, logger)
	case BackendPortAudio:
		return NewPortAudioSink(cfg, logger)
	case BackendAuto:
		sink, err := NewPortAudioSink(cfg, logger)
		if err != nil {
			logger.Warn("no audio device, using silent sink", "error", err)
			return NewMockSink(cfg, logger), nil
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// AvailableBackends returns the list of selectable backends.
func AvailableBackends() []Backend {
	return []Backend{BackendAuto, BackendPortAudio, BackendWAVFile, BackendMock}
}
