package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-mimi/pkg/audioio"
	"github.com/teslashibe/go-mimi/pkg/tts"
)

// Output speaks text one utterance at a time.
type Output struct {
	provider tts.Provider
	sink     audioio.Sink
	cfg      Config
	logger   *slog.Logger
	metrics  *MetricsCollector

	speakMu sync.Mutex // held for the whole utterance
	pending sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc // cancels the current utterance
	closed bool

	enabled atomic.Bool
	busy    atomic.Bool
	gen     atomic.Uint64
	level   atomic.Uint64 // float64 bits
}

// New creates an Output. Neither provider nor sink may be nil.
func New(provider tts.Provider, sink audioio.Sink, opts ...Option) (*Output, error) {
	if provider == nil || sink == nil {
		return nil, errors.New("voice: provider and sink are required")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Output{
		provider: provider,
		sink:     sink,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "voice"),
		metrics:  NewMetricsCollector(),
	}
	o.enabled.Store(cfg.Enabled)
	return o, nil
}

// Speak says text. With block set it returns when playback ends; otherwise
// the utterance is queued behind any in progress and Speak returns at once.
// Speaking while disabled, or text that cleans to nothing, is a no-op.
func (o *Output) Speak(ctx context.Context, text string, block bool) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !o.enabled.Load() {
		o.logger.Debug("voice disabled, skipping", "chars", len(text))
		return nil
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return nil
	}

	u := Metrics{QueuedTime: time.Now(), Chars: len([]rune(cleaned))}
	gen := o.gen.Load()
	if block {
		return o.say(ctx, cleaned, gen, u)
	}

	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		if err := o.say(ctx, cleaned, gen, u); err != nil && !errors.Is(err, ErrInterrupted) {
			o.logger.Warn("speech failed", "error", err)
		}
	}()
	return nil
}

func (o *Output) say(ctx context.Context, text string, gen uint64, u Metrics) (err error) {
	o.speakMu.Lock()
	defer o.speakMu.Unlock()

	defer func() {
		u.DoneTime = time.Now()
		u.Interrupted = errors.Is(err, ErrInterrupted)
		u.Failed = err != nil && !u.Interrupted
		o.metrics.Record(u)
	}()

	if o.gen.Load() != gen {
		return ErrInterrupted
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.cancel = nil
		o.mu.Unlock()
		cancel()
	}()

	o.busy.Store(true)
	defer func() {
		o.setLevel(0)
		o.busy.Store(false)
	}()
	u.StartTime = time.Now()

	result, err := o.provider.Synthesize(ctx, text)
	if err != nil {
		if o.gen.Load() != gen {
			return ErrInterrupted
		}
		return fmt.Errorf("synthesize: %w", err)
	}
	u.SynthesizedTime = time.Now()
	u.AudioDuration = result.Duration

	if err := o.play(ctx, result, gen); err != nil {
		if o.gen.Load() != gen || errors.Is(err, audioio.ErrCleared) {
			return ErrInterrupted
		}
		return fmt.Errorf("play: %w", err)
	}

	o.logger.Debug("utterance spoken",
		"chars", u.Chars,
		"duration", result.Duration,
		"synth_ms", u.SynthesizedTime.Sub(u.StartTime).Milliseconds())
	return nil
}

func (o *Output) play(ctx context.Context, result *tts.AudioResult, gen uint64) error {
	if err := o.sink.Start(ctx); err != nil {
		return err
	}

	chunk := audioio.AudioChunk{
		Samples:    audioio.Gain(result.PCM, o.cfg.Volume),
		SampleRate: result.Format.SampleRate,
		Channels:   result.Format.Channels,
	}
	frames := int(o.cfg.Segment.Seconds() * float64(result.Format.SampleRate))
	for _, part := range chunk.Split(frames) {
		if o.gen.Load() != gen {
			return ErrInterrupted
		}
		o.setLevel(audioio.Level(part.Samples))
		if err := o.sink.Write(ctx, part); err != nil {
			return err
		}
	}
	return o.sink.Flush(ctx)
}

// Stop drops utterances that have not started and interrupts the current
// one at the next buffer boundary. It returns once the output is idle.
func (o *Output) Stop() {
	o.gen.Add(1)
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()
	o.sink.Clear()

	// Wait for the current utterance to release the output.
	o.speakMu.Lock()
	o.speakMu.Unlock()
}

// IsBusy reports whether an utterance is being synthesized or played.
func (o *Output) IsBusy() bool {
	return o.busy.Load()
}

// Enabled reports whether Speak produces audio.
func (o *Output) Enabled() bool {
	return o.enabled.Load()
}

// SetEnabled toggles speech. Disabling stops the current utterance.
func (o *Output) SetEnabled(enabled bool) {
	if o.enabled.Swap(enabled) == enabled {
		return
	}
	o.logger.Info("voice toggled", "enabled", enabled)
	if !enabled {
		o.Stop()
	}
}

// Level returns the RMS level (0..1) of the audio being played.
func (o *Output) Level() float64 {
	return math.Float64frombits(o.level.Load())
}

func (o *Output) setLevel(v float64) {
	o.level.Store(math.Float64bits(v))
}

// Metrics returns the utterance metrics collector.
func (o *Output) Metrics() *MetricsCollector {
	return o.metrics
}

// Close stops speech, waits for queued utterances to drain and releases the
// provider and sink.
func (o *Output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.Stop()
	o.pending.Wait()
	return errors.Join(o.sink.Close(), o.provider.Close())
}
