package voice

import (
	"errors"
	"log/slog"
	"time"
)

// Config holds voice output settings.
type Config struct {
	// Enabled starts the output speaking; it can be toggled at runtime.
	Enabled bool

	// Volume is a playback gain applied on top of the TTS output.
	// Default: 1.0
	Volume float64

	// Segment is the audio length written per sink call; Level updates at
	// this granularity.
	// Default: 100ms
	Segment time.Duration

	// Logger receives utterance events. Default: slog.Default().
	Logger *slog.Logger
}

// Option configures an Output.
type Option func(*Config)

// WithEnabled sets whether speech starts enabled.
func WithEnabled(enabled bool) Option {
	return func(c *Config) { c.Enabled = enabled }
}

// WithVolume sets the playback gain.
func WithVolume(v float64) Option {
	return func(c *Config) { c.Volume = v }
}

// WithSegment sets the audio length per sink write.
func WithSegment(d time.Duration) Option {
	return func(c *Config) { c.Segment = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Volume:  1.0,
		Segment: 100 * time.Millisecond,
		Logger:  slog.Default(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Volume < 0 || c.Volume > 4 {
		return errors.New("voice: volume must be between 0 and 4")
	}
	if c.Segment <= 0 {
		return errors.New("voice: segment must be positive")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
