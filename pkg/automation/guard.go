package automation

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultDangerousKeywords are shell fragments the companion must never type.
var DefaultDangerousKeywords = []string{
	"rm -rf", "del", "format", "shutdown", "reboot",
	"kill", "pkill", "killall",
	"sudo", "su",
	"chmod", "chown",
	"dd if=", "mkfs",
	"> /dev/", "curl", "wget",
	"passwd", "useradd", "userdel",
}

// Guard rejects text containing dangerous keywords. Keywords match on word
// boundaries, case-insensitively, so "sure" does not match "su".
type Guard struct {
	keywords []string
}

// NewGuard creates a guard for keywords.
func NewGuard(keywords ...string) *Guard {
	g := &Guard{}
	for _, k := range keywords {
		g.Add(k)
	}
	return g
}

// DefaultGuard returns a guard over DefaultDangerousKeywords.
func DefaultGuard() *Guard {
	return NewGuard(DefaultDangerousKeywords...)
}

// Add appends a keyword.
func (g *Guard) Add(keyword string) {
	if k := strings.ToLower(strings.TrimSpace(keyword)); k != "" {
		g.keywords = append(g.keywords, k)
	}
}

// Keywords returns the configured keywords.
func (g *Guard) Keywords() []string {
	return append([]string(nil), g.keywords...)
}

// Check returns ErrUnsafeInput naming the first keyword found in text.
func (g *Guard) Check(text string) error {
	if g == nil {
		return nil
	}
	lower := strings.ToLower(text)
	for _, k := range g.keywords {
		if containsWord(lower, k) {
			return fmt.Errorf("%w: contains %q", ErrUnsafeInput, k)
		}
	}
	return nil
}

// CheckName rejects application names that look like paths.
func (g *Guard) CheckName(name string) error {
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: illegal characters in %q", ErrUnsafeInput, name)
	}
	return g.Check(name)
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		if boundary(s, start-1, word[0]) && boundary(s, end, word[len(word)-1]) {
			return true
		}
		i = start + 1
	}
}

// boundary reports whether s[i] may sit next to edge, a keyword's first or
// last byte. Punctuation edges such as '=' need no boundary.
func boundary(s string, i int, edge byte) bool {
	if i < 0 || i >= len(s) || !isWordByte(edge) {
		return true
	}
	return !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	r := rune(b)
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
