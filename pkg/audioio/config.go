// Package audioio provides audio playback for synthesized speech.
//
// This package supports multiple backends:
//   - PortAudio - speakers on Linux, macOS and Windows
//   - WAV file - headless runs, one file per utterance
//   - Mock - CI/Testing without hardware
//
// The backend is selected from configuration; "auto" tries PortAudio and
// falls back to the mock sink when no output device is available.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects PortAudio when a device is available.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform playback.
	BackendPortAudio Backend = "portaudio"
	// BackendWAVFile writes each utterance to a WAV file.
	BackendWAVFile Backend = "wavfile"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the playback sample rate in Hz.
	// Default: 24000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of audio buffers. Playback can be
	// interrupted at buffer boundaries.
	// Default: 20ms (480 samples at 24kHz)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is the output device name. Empty selects the system default.
	Device string `yaml:"device" json:"device"`

	// OutputDir is where the wavfile backend writes utterances.
	// Default: "recordings"
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		OutputDir:      "recordings",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	switch c.Backend {
	case BackendAuto, BackendPortAudio, BackendWAVFile, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}

// BufferSize returns the number of sample frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (assuming int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

// Convert resamples chunk and adjusts its channel count to match c.
func (c *Config) Convert(chunk AudioChunk) AudioChunk {
	channels := max(chunk.Channels, 1)
	samples := chunk.Samples
	if channels == 2 {
		samples = Downmix(samples)
	}
	rate := chunk.SampleRate
	if rate <= 0 {
		rate = c.SampleRate
	}
	samples = Resample(samples, rate, c.SampleRate)
	if c.Channels == 2 {
		samples = Upmix(samples)
	}
	return AudioChunk{Samples: samples, SampleRate: c.SampleRate, Channels: c.Channels}
}
