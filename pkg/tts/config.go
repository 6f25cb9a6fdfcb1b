package tts

import (
	"log/slog"
	"time"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// HTTP providers
	APIKey  string
	BaseURL string
	ModelID string

	// Voice
	VoiceID string
	Rate    int     // words per minute (espeak)
	Speed   float64 // speed multiplier (HTTP providers)
	Volume  float64 // 0.0-1.0

	// Binary is the espeak executable.
	Binary string

	Timeout time.Duration

	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for HTTP providers.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets the API base URL, e.g. "http://localhost:8880/v1".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the model ID.
func WithModel(modelID string) Option {
	return func(c *Config) { c.ModelID = modelID }
}

// WithVoice sets the voice name.
func WithVoice(voiceID string) Option {
	return func(c *Config) { c.VoiceID = voiceID }
}

// WithRate sets the speaking rate in words per minute.
func WithRate(wpm int) Option {
	return func(c *Config) { c.Rate = wpm }
}

// WithSpeed sets the speed multiplier for HTTP providers.
func WithSpeed(speed float64) Option {
	return func(c *Config) { c.Speed = speed }
}

// WithVolume sets the output volume, 0.0-1.0.
func WithVolume(v float64) Option {
	return func(c *Config) { c.Volume = v }
}

// WithBinary sets the espeak executable path.
func WithBinary(path string) Option {
	return func(c *Config) { c.Binary = path }
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Rate:       170,
		Speed:      1.0,
		Volume:     0.9,
		Binary:     "espeak-ng",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the values every provider relies on.
func (c *Config) Validate() error {
	if c.Volume < 0 || c.Volume > 1 {
		return ErrInvalidVolume
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
