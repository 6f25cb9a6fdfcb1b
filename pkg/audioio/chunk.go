package audioio

// AudioChunk represents a chunk of audio data.
type AudioChunk struct {
	// Samples contains interleaved PCM16 samples.
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// Duration returns the duration of this audio chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Split cuts the chunk into pieces of at most frames sample frames.
func (c AudioChunk) Split(frames int) []AudioChunk {
	step := frames * max(c.Channels, 1)
	if step <= 0 || len(c.Samples) <= step {
		return []AudioChunk{c}
	}
	out := make([]AudioChunk, 0, len(c.Samples)/step+1)
	for i := 0; i < len(c.Samples); i += step {
		end := min(i+step, len(c.Samples))
		out = append(out, AudioChunk{Samples: c.Samples[i:end], SampleRate: c.SampleRate, Channels: c.Channels})
	}
	return out
}
