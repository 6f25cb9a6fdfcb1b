package tts

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a 16-bit PCM WAV file.
func DecodeWAV(data []byte) ([]int16, AudioFormat, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, AudioFormat{}, fmt.Errorf("%w: not a WAV file", ErrInvalidAudio)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, AudioFormat{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	if dec.BitDepth != 16 {
		return nil, AudioFormat{}, fmt.Errorf("%w: %d-bit samples", ErrInvalidAudio, dec.BitDepth)
	}

	pcm := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = int16(v)
	}
	return pcm, AudioFormat{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   16,
	}, nil
}

// EncodeWAV writes r as a 16-bit PCM WAV file.
func EncodeWAV(w io.WriteSeeker, r *AudioResult) error {
	channels := max(r.Format.Channels, 1)
	enc := wav.NewEncoder(w, r.Format.SampleRate, 16, channels, 1)

	data := make([]int, len(r.PCM))
	for i, v := range r.PCM {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: r.Format.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

func newResult(pcm []int16, format AudioFormat, text string, latencyMs int64) *AudioResult {
	return &AudioResult{
		PCM:       pcm,
		Format:    format,
		Duration:  durationOf(len(pcm), format),
		CharCount: len([]rune(text)),
		LatencyMs: latencyMs,
	}
}
