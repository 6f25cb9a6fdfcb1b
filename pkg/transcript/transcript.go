// Package transcript keeps the companion's reaction history.
//
// Entries are held in a bounded in-memory ring for the dashboard and prompt
// history, and optionally appended to a JSON Lines file so a session can be
// reviewed later.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// DefaultCapacity is the number of entries kept in memory.
const DefaultCapacity = 100

// Speaker identifies who said an entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerCompanion Speaker = "companion"
)

// Entry is one line of the transcript.
type Entry struct {
	Time    time.Time `json:"time"`
	Speaker Speaker   `json:"speaker"`
	Name    string    `json:"name,omitempty"`
	Kind    string    `json:"kind,omitempty"`
	Text    string    `json:"text"`
	Emotion string    `json:"emotion,omitempty"`
	Action  string    `json:"action,omitempty"`
	Target  string    `json:"target,omitempty"`
	Scene   string    `json:"scene,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
}

// Line renders the entry as "Name: text" for prompt history.
func (e Entry) Line() string {
	name := e.Name
	if name == "" {
		name = "User"
		if e.Speaker == SpeakerCompanion {
			name = "Assistant"
		}
	}
	return name + ": " + e.Text
}

// Transcript is a bounded, optionally persisted history.
type Transcript struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	ring  []Entry
	start int
	n     int
	total int64
}

// New creates a transcript keeping capacity entries in memory. store may
// be nil for an in-memory transcript; otherwise existing entries are loaded.
func New(store Store, capacity int, logger *slog.Logger) (*Transcript, error) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transcript{
		store:  store,
		logger: logger.With("component", "transcript"),
		ring:   make([]Entry, capacity),
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewWithFile creates a transcript persisted to a JSON Lines file.
func NewWithFile(fsys afero.Fs, path string, capacity int, logger *slog.Logger) (*Transcript, error) {
	return New(NewJSONLStore(fsys, path), capacity, logger)
}

func (t *Transcript) load() error {
	if t.store == nil {
		return nil
	}
	data, err := t.store.Load()
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	skipped := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		t.push(e)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan transcript: %w", err)
	}
	if skipped > 0 {
		t.logger.Warn("skipped malformed transcript lines", "count", skipped)
	}
	return nil
}

// push adds e to the ring. Caller holds mu or owns t.
func (t *Transcript) push(e Entry) {
	idx := (t.start + t.n) % len(t.ring)
	t.ring[idx] = e
	if t.n < len(t.ring) {
		t.n++
	} else {
		t.start = (t.start + 1) % len(t.ring)
	}
	t.total++
}

// Append records e, stamping the time if unset. The entry stays in memory
// even when persisting fails.
func (t *Transcript) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	t.mu.Lock()
	t.push(e)
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return t.store.Append(line)
}

// Recent returns up to n entries, oldest first. n <= 0 returns everything held.
func (t *Transcript) Recent(n int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n <= 0 || n > t.n {
		n = t.n
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = t.ring[(t.start+t.n-n+i)%len(t.ring)]
	}
	return out
}

// History returns the last n entries rendered as "Name: text" lines.
func (t *Transcript) History(n int) []string {
	entries := t.Recent(n)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Line()
	}
	return lines
}

// Len returns the number of entries held in memory.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.n
}

// Total returns the number of entries appended or loaded since creation.
func (t *Transcript) Total() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Clear empties the in-memory ring. The file is untouched.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start, t.n = 0, 0
	clear(t.ring)
}

// Close releases the store.
func (t *Transcript) Close() error {
	if t.store == nil {
		return nil
	}
	return t.store.Close()
}
