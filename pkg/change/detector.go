package change

import (
	"sync"

	"github.com/teslashibe/go-mimi/pkg/understanding"
)

// Mode selects which parts of the signature count as change.
type Mode int

const (
	// ModeObjectsAndScene triggers on object set or scene label changes.
	ModeObjectsAndScene Mode = iota

	// ModeObjectsOnly ignores the scene label. Useful when the captioner
	// flickers between similar scenes.
	ModeObjectsOnly
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeObjectsOnly:
		return "objects"
	default:
		return "objects+scene"
	}
}

// ParseMode parses "objects" or "objects+scene" (the default for anything
// else).
func ParseMode(s string) Mode {
	if s == "objects" {
		return ModeObjectsOnly
	}
	return ModeObjectsAndScene
}

// Result is the verdict for one observed analysis.
type Result struct {
	Changed      bool
	Bootstrap    bool // first observation since creation or Reset
	SceneChanged bool
	Added        []Key
	Removed      []Key
	Signature    Signature
}

// Stats counts observations.
type Stats struct {
	Observed uint64 `json:"observed"`
	Changed  uint64 `json:"changed"`
}

// Detector remembers the last accepted signature. Safe for concurrent use.
type Detector struct {
	mu     sync.Mutex
	bucket int
	mode   Mode
	last   *Signature
	stats  Stats
}

// Option configures a Detector.
type Option func(*Detector)

// WithMode sets the change mode.
func WithMode(m Mode) Option {
	return func(d *Detector) { d.mode = m }
}

// NewDetector creates a detector quantizing to bucket pixels. Buckets below
// 1 are clamped to 1.
func NewDetector(bucket int, opts ...Option) *Detector {
	if bucket < 1 {
		bucket = 1
	}
	d := &Detector{bucket: bucket}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bucket returns the quantization grid size.
func (d *Detector) Bucket() int { return d.bucket }

// Mode returns the change mode.
func (d *Detector) Mode() Mode { return d.mode }

// Observe compares a with the last accepted signature. The first call
// always reports a change. When the result is a change the new signature
// replaces the old one; otherwise state is untouched.
func (d *Detector) Observe(a *understanding.ScreenAnalysis) Result {
	sig := Compute(a, d.bucket)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Observed++

	r := Result{Signature: sig}
	if d.last == nil {
		r.Changed = true
		r.Bootstrap = true
	} else {
		r.Added, r.Removed = sig.Diff(*d.last)
		r.SceneChanged = sig.Scene != d.last.Scene
		r.Changed = len(r.Added) > 0 || len(r.Removed) > 0
		if d.mode == ModeObjectsAndScene {
			r.Changed = r.Changed || r.SceneChanged
		}
	}

	if r.Changed {
		d.last = &sig
		d.stats.Changed++
	}
	return r
}

// Last returns the last accepted signature, if any.
func (d *Detector) Last() (Signature, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Signature{}, false
	}
	return *d.last, true
}

// Reset forgets the last signature; the next Observe bootstraps.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = nil
}

// Stats returns observation counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
