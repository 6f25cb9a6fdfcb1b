package inference

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
// Unset Func fields return ErrProviderUnavailable.
type Mock struct {
	ChatFunc   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	VisionFunc func(ctx context.Context, req *VisionRequest) (*VisionResponse, error)
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Prompt string
	Time   time.Time
}

// NewMock returns a mock whose Chat replies with content.
func NewMock(content string) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{Message: NewAssistantMessage(content), FinishReason: "stop"}, nil
		},
	}
}

// Chat calls ChatFunc and records the call.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	prompt := ""
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	m.record("Chat", prompt)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Vision calls VisionFunc and records the call.
func (m *Mock) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	m.record("Vision", req.Prompt)
	if m.VisionFunc != nil {
		return m.VisionFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }

func (m *Mock) record(method, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Prompt: prompt, Time: time.Now()})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

var _ Provider = (*Mock)(nil)
