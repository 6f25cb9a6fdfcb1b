package screen

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StreamConfig controls frame pacing.
type StreamConfig struct {
	// FPS is the target capture rate. Values <= 0 select 10.
	FPS float64

	// Duration bounds the stream. Zero means until ctx is cancelled.
	Duration time.Duration

	Logger *slog.Logger
}

// Stream captures frames from src at the configured rate and delivers them on
// the returned channel, which is closed when the duration elapses, ctx is
// cancelled, or the source reports ErrNoFrames.
//
// Capture errors skip the iteration. The stream is not restartable; call
// Stream again to begin a new capture run.
func Stream(ctx context.Context, src Source, cfg StreamConfig) <-chan *Frame {
	fps := cfg.FPS
	if fps <= 0 {
		fps = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := time.Duration(float64(time.Second) / fps)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Duration)
	}

	out := make(chan *Frame)
	go func() {
		defer cancel()
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			frame, err := src.Capture(runCtx)
			switch {
			case err == nil:
				select {
				case out <- frame:
				case <-runCtx.Done():
					return
				}
			case errors.Is(err, ErrNoFrames):
				logger.Warn("frame source exhausted")
				return
			case runCtx.Err() != nil:
				return
			default:
				logger.Warn("capture failed, skipping frame", "error", err)
			}

			select {
			case <-ticker.C:
			case <-runCtx.Done():
				return
			}
		}
	}()
	return out
}
