package automation

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// Config holds controller settings.
type Config struct {
	// Screen is the target display size. Zero asks the driver.
	Screen screen.Size

	// DetectionSize is the analysis-image size coordinates arrive in.
	// Default: 640x640
	DetectionSize screen.Size

	// MinActionDelay is the minimum gap between two actions.
	// Default: 500ms
	MinActionDelay time.Duration

	// SafetyMode asks the Confirmer before clicks and typing.
	// Default: true
	SafetyMode bool

	// TypeInterval is the pause between keystrokes.
	// Default: 50ms
	TypeInterval time.Duration

	// MoveDuration caps a smooth pointer move; shorter distances move
	// proportionally faster (1000 px per second).
	// Default: 500ms
	MoveDuration time.Duration

	// ClickSettle is the pause between arriving and clicking.
	// Default: 100ms
	ClickSettle time.Duration

	// Confirmer approves actions in safety mode. Default: AutoDecline.
	Confirmer Confirmer

	// Guard screens typed text. Default: DefaultGuard().
	Guard *Guard

	// Logger receives action events. Default: slog.Default().
	Logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Config)

// WithScreen sets the target display size.
func WithScreen(size screen.Size) Option {
	return func(c *Config) { c.Screen = size }
}

// WithDetectionSize sets the analysis-image size.
func WithDetectionSize(size screen.Size) Option {
	return func(c *Config) { c.DetectionSize = size }
}

// WithSafetyMode toggles confirmation prompts.
func WithSafetyMode(on bool) Option {
	return func(c *Config) { c.SafetyMode = on }
}

// WithConfirmer sets the confirmer used in safety mode.
func WithConfirmer(conf Confirmer) Option {
	return func(c *Config) { c.Confirmer = conf }
}

// WithMinActionDelay sets the minimum gap between actions.
func WithMinActionDelay(d time.Duration) Option {
	return func(c *Config) { c.MinActionDelay = d }
}

// WithTypeInterval sets the pause between keystrokes.
func WithTypeInterval(d time.Duration) Option {
	return func(c *Config) { c.TypeInterval = d }
}

// WithMotion sets the smooth-move cap and the pause before clicking.
func WithMotion(move, settle time.Duration) Option {
	return func(c *Config) {
		c.MoveDuration = move
		c.ClickSettle = settle
	}
}

// WithGuard sets the typed-text guard. Nil disables screening.
func WithGuard(g *Guard) Option {
	return func(c *Config) { c.Guard = g }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DetectionSize:  screen.Size{W: 640, H: 640},
		MinActionDelay: 500 * time.Millisecond,
		SafetyMode:     true,
		TypeInterval:   50 * time.Millisecond,
		MoveDuration:   500 * time.Millisecond,
		ClickSettle:    100 * time.Millisecond,
		Confirmer:      AutoDecline,
		Guard:          DefaultGuard(),
		Logger:         slog.Default(),
	}
}
