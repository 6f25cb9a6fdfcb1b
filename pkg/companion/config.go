package companion

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/teslashibe/go-mimi/pkg/reaction"
)

// Style selects how screen changes are answered.
type Style string

const (
	// StyleDecision asks for a structured decision that may click or type.
	StyleDecision Style = "decision"

	// StyleReaction asks for a short spoken remark only.
	StyleReaction Style = "reaction"
)

// ParseStyle parses "reaction" or "decision" (the default).
func ParseStyle(s string) Style {
	if Style(s) == StyleReaction {
		return StyleReaction
	}
	return StyleDecision
}

// Config holds companion configuration.
type Config struct {
	// Name is the companion's display name.
	// Default: "Mimi"
	Name string

	// FPS is the capture rate.
	// Default: 2
	FPS float64

	// Duration bounds Run. Zero runs until the context is cancelled.
	Duration time.Duration

	Style Style

	// Scheduler configures the reaction queue.
	Scheduler reaction.Config

	// Greeting speaks a hello on start and a goodbye on exit.
	// Default: true
	Greeting bool

	// Idle comments: every CommentCheck the companion rolls CommentChance
	// once a random interval in [CommentMinInterval, CommentMaxInterval]
	// has passed since the last one. CommentChance 0 disables them.
	CommentCheck       time.Duration
	CommentMinInterval time.Duration
	CommentMaxInterval time.Duration
	CommentChance      float64

	// Screen questions replace a screen reaction at most once per
	// QuestionInterval when at least QuestionMinObjects are visible.
	// QuestionInterval 0 disables them.
	QuestionInterval   time.Duration
	QuestionMinObjects int

	// Prompt history lengths.
	ReactionHistory int
	ChatHistory     int

	// Rand drives comments and question templates. Nil seeds from time.
	Rand *rand.Rand

	Logger *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Name:               "Mimi",
		FPS:                2,
		Style:              StyleDecision,
		Scheduler:          reaction.DefaultConfig(),
		Greeting:           true,
		CommentCheck:       time.Second,
		CommentMinInterval: 45 * time.Second,
		CommentMaxInterval: 90 * time.Second,
		CommentChance:      0.4,
		QuestionInterval:   60 * time.Second,
		QuestionMinObjects: 3,
		ReactionHistory:    3,
		ChatHistory:        5,
		Logger:             slog.Default(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.FPS < 0 {
		return fmt.Errorf("%w: fps must be non-negative", ErrInvalidConfig)
	}
	if c.CommentChance < 0 || c.CommentChance > 1 {
		return fmt.Errorf("%w: comment chance must be between 0 and 1", ErrInvalidConfig)
	}
	if c.CommentChance > 0 {
		if c.CommentCheck <= 0 {
			return fmt.Errorf("%w: comment check interval must be positive", ErrInvalidConfig)
		}
		if c.CommentMinInterval < 0 || c.CommentMaxInterval < c.CommentMinInterval {
			return fmt.Errorf("%w: comment interval range is invalid", ErrInvalidConfig)
		}
	}
	if c.QuestionInterval < 0 {
		return fmt.Errorf("%w: question interval must be non-negative", ErrInvalidConfig)
	}
	return nil
}
