package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const providerEspeak = "espeak"

// Espeak implements Provider by running espeak-ng (or espeak) locally.
type Espeak struct {
	config *Config
	logger *slog.Logger

	// run executes the binary; replaced in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewEspeak creates an espeak provider. The binary is looked up lazily so
// a missing engine surfaces through Health rather than at construction.
func NewEspeak(opts ...Option) (*Espeak, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Espeak{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.espeak"),
		run:    runCommand,
	}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, name)
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Args returns the command line used for text.
func (e *Espeak) Args(text string) []string {
	args := []string{
		"--stdout",
		"-s", strconv.Itoa(e.config.Rate),
		"-a", strconv.Itoa(int(e.config.Volume * 100)),
	}
	if e.config.VoiceID != "" {
		args = append(args, "-v", e.config.VoiceID)
	}
	return append(args, "--", text)
}

// Synthesize implements Provider.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}
	start := time.Now()

	out, err := e.run(ctx, e.config.Binary, e.Args(text)...)
	if err != nil {
		return nil, WrapError(providerEspeak, err)
	}
	pcm, format, err := DecodeWAV(out)
	if err != nil {
		return nil, WrapError(providerEspeak, err)
	}

	result := newResult(pcm, format, text, time.Since(start).Milliseconds())
	e.logger.Debug("synthesized audio",
		"chars", result.CharCount,
		"duration", result.Duration,
		"latency_ms", result.LatencyMs)
	return result, nil
}

// Health checks that the binary runs.
func (e *Espeak) Health(ctx context.Context) error {
	if _, err := e.run(ctx, e.config.Binary, "--version"); err != nil {
		return WrapError(providerEspeak, err)
	}
	return nil
}

// Close is a no-op.
func (e *Espeak) Close() error { return nil }

var _ Provider = (*Espeak)(nil)
