package reaction

import (
	"log/slog"
	"time"
)

// Strategy decides where bursts of changes are coalesced.
type Strategy int

const (
	// CoalesceAtGeneration admits every change while there is room; each
	// admitted change gets its own generation.
	CoalesceAtGeneration Strategy = iota

	// CoalesceAtAdmission refuses a change while the worker is busy or
	// anything is queued, so at most one reaction is ever outstanding.
	CoalesceAtAdmission
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	if s == CoalesceAtAdmission {
		return "admission"
	}
	return "generation"
}

// ParseStrategy parses "admission" or "generation" (the default).
func ParseStrategy(s string) Strategy {
	if s == "admission" {
		return CoalesceAtAdmission
	}
	return CoalesceAtGeneration
}

// Mode selects the execution model.
type Mode int

const (
	// ModeAsync runs tasks on a background worker; Enqueue never blocks.
	ModeAsync Mode = iota

	// ModeSequential runs the handler inline inside Enqueue.
	ModeSequential
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModeSequential {
		return "sequential"
	}
	return "async"
}

// ParseMode parses "sequential" or "async" (the default).
func ParseMode(s string) Mode {
	if s == "sequential" {
		return ModeSequential
	}
	return ModeAsync
}

// Config holds scheduler configuration.
type Config struct {
	// Capacity bounds the queue. Enqueue drops when full.
	Capacity int

	Strategy Strategy
	Mode     Mode

	// TaskTimeout bounds one handler call. Zero disables the deadline.
	TaskTimeout time.Duration

	// PollInterval bounds one queue wait so the worker re-checks for
	// shutdown.
	PollInterval time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:     5,
		Strategy:     CoalesceAtGeneration,
		Mode:         ModeAsync,
		TaskTimeout:  60 * time.Second,
		PollInterval: time.Second,
		Logger:       slog.Default(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Capacity < 1 {
		c.Capacity = d.Capacity
	}
	if c.TaskTimeout < 0 {
		c.TaskTimeout = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
}
