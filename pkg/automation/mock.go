package automation

import (
	"strings"
	"sync"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// MockDriver records input events instead of sending them.
type MockDriver struct {
	// Size is returned by ScreenSize.
	Size screen.Size

	// KeyTapFunc overrides KeyTap when set.
	KeyTapFunc func(key string, modifiers ...string) error

	mu     sync.Mutex
	pos    screen.Point
	moves  []screen.Point
	events []string
	typed  strings.Builder
}

// NewMockDriver creates a mock for a screen of size.
func NewMockDriver(size screen.Size) *MockDriver {
	return &MockDriver{Size: size}
}

// Location implements Driver.
func (m *MockDriver) Location() screen.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// MoveTo implements Driver.
func (m *MockDriver) MoveTo(p screen.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = p
	m.moves = append(m.moves, p)
}

// Click implements Driver.
func (m *MockDriver) Click(button string, double bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kind := "click "
	if double {
		kind = "dblclick "
	}
	m.events = append(m.events, kind+button+" "+m.pos.String())
}

// TypeText implements Driver.
func (m *MockDriver) TypeText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typed.WriteString(text)
	m.events = append(m.events, "type "+text)
}

// KeyTap implements Driver.
func (m *MockDriver) KeyTap(key string, modifiers ...string) error {
	m.mu.Lock()
	m.events = append(m.events, "key "+strings.Join(append(append([]string(nil), modifiers...), key), "+"))
	fn := m.KeyTapFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(key, modifiers...)
	}
	return nil
}

// ScreenSize implements Driver.
func (m *MockDriver) ScreenSize() screen.Size {
	return m.Size
}

// Events returns clicks, keystrokes and key taps in order.
func (m *MockDriver) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// Moves returns every pointer position set.
func (m *MockDriver) Moves() []screen.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]screen.Point(nil), m.moves...)
}

// Typed returns all text typed.
func (m *MockDriver) Typed() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typed.String()
}

var _ Driver = (*MockDriver)(nil)
