package inference

import (
	"log/slog"
	"time"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string // optional for local servers

	Model       string
	VisionModel string

	MaxTokens   int
	Temperature float64
	TopP        float64

	Timeout time.Duration

	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "http://localhost:11434/v1".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithVisionModel sets the multimodal model used by Vision.
func WithVisionModel(model string) Option {
	return func(c *Config) { c.VisionModel = model }
}

// WithMaxTokens sets the default completion length.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithSampling sets the default temperature and nucleus sampling.
func WithSampling(temperature, topP float64) Option {
	return func(c *Config) {
		c.Temperature = temperature
		c.TopP = topP
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retries for 429 and 5xx responses.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig targets a local Ollama server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:11434/v1",
		Model:       "llama3.2:3b",
		VisionModel: "llava:7b",
		MaxTokens:   300,
		Temperature: 0.8,
		TopP:        0.9,
		Timeout:     90 * time.Second,
		MaxRetries:  2,
		RetryDelay:  250 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}
