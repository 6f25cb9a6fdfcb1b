// Package tts provides a unified interface for text-to-speech providers.
//
// Providers return decoded 16-bit PCM so playback never needs to know which
// engine produced the audio. Espeak runs the local espeak-ng binary; OpenAI
// talks to any server exposing the OpenAI /audio/speech endpoint (OpenAI
// itself, or a local Kokoro/Piper wrapper). Chain falls back across
// providers.
//
// Example usage:
//
//	remote, _ := tts.NewOpenAI(tts.WithBaseURL("http://localhost:8880/v1"))
//	local, _ := tts.NewEspeak(tts.WithRate(170))
//	provider, _ := tts.NewChain(remote, local)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello Master!")
//	// result.PCM holds mono int16 samples at result.Format.SampleRate
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the provider can synthesize.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// PCM holds interleaved signed 16-bit samples.
	PCM []int16

	// Format describes the samples.
	Format AudioFormat

	// Duration is the playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes PCM parameters.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Frames returns the number of sample frames in r.
func (r *AudioResult) Frames() int {
	if r.Format.Channels <= 0 {
		return len(r.PCM)
	}
	return len(r.PCM) / r.Format.Channels
}

// durationOf computes playback time from sample count and format.
func durationOf(samples int, f AudioFormat) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := samples / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}
