package tts

import (
	"context"
	"sync"
	"time"
)

// Mock is a scriptable Provider. Nil funcs fall back to: Synthesize fails
// with ErrProviderUnavailable, Health succeeds.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded invocation.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock returns a mock that speaks silence: 20ms per rune at 24kHz mono.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(_ context.Context, text string) (*AudioResult, error) {
			return Silence(text, 24000, 20*time.Millisecond), nil
		},
	}
}

// WithError returns a mock whose Synthesize and Health both fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// Silence builds a silent mono result lasting perChar for each rune of text.
func Silence(text string, sampleRate int, perChar time.Duration) *AudioResult {
	runes := time.Duration(len([]rune(text)))
	samples := int(runes * perChar * time.Duration(sampleRate) / time.Second)
	format := AudioFormat{SampleRate: sampleRate, Channels: 1, BitDepth: 16}
	return newResult(make([]int16, samples), format, text, 1)
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.SynthesizeFunc(ctx, text)
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.record("Close", "")
	return nil
}

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
	m.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount counts recorded calls to method.
func (m *Mock) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Spoken returns the text of every Synthesize call in order.
func (m *Mock) Spoken() []string {
	var out []string
	for _, c := range m.Calls() {
		if c.Method == "Synthesize" {
			out = append(out, c.Text)
		}
	}
	return out
}

var _ Provider = (*Mock)(nil)
