package reaction

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-mimi/pkg/understanding"
)

// Kind says what triggered a task.
type Kind string

const (
	KindScreen   Kind = "screen"   // accepted screen change
	KindComment  Kind = "comment"  // random idle comment
	KindQuestion Kind = "question" // periodic question about the screen
	KindChat     Kind = "chat"     // message typed by the user
)

// Coalescible reports whether the task may be refused while another
// reaction is outstanding. User chat is never coalesced; it waits its turn.
func (k Kind) Coalescible() bool { return k != KindChat }

// Status is the terminal state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned" // still queued at shutdown
)

// Task is one unit of reaction work. It is consumed exactly once.
type Task struct {
	ID     string
	Kind   Kind
	Prompt string

	// Analysis is the analysis that triggered the task, if any. Handlers
	// usually re-analyze the latest frame instead.
	Analysis *understanding.ScreenAnalysis

	EnqueuedAt time.Time

	mu       sync.Mutex
	status   Status
	err      error
	result   any
	started  time.Time
	finished time.Time
	done     chan struct{}
}

// NewTask creates a pending task with a fresh ID.
func NewTask(kind Kind, prompt string, analysis *understanding.ScreenAnalysis) *Task {
	return &Task{
		ID:       uuid.NewString(),
		Kind:     kind,
		Prompt:   prompt,
		Analysis: analysis,
		status:   StatusPending,
		done:     make(chan struct{}),
	}
}

// Done is closed once the task finished, failed or was abandoned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the handler error of a failed task.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// SetResult attaches the handler's output to the task.
func (t *Task) SetResult(v any) {
	t.mu.Lock()
	t.result = v
	t.mu.Unlock()
}

// Result returns the value set by the handler, or nil.
func (t *Task) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Latency is the time from dequeue to completion.
func (t *Task) Latency() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished.IsZero() || t.started.IsZero() {
		return 0
	}
	return t.finished.Sub(t.started)
}

// Wait is the time the task spent queued.
func (t *Task) Wait() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started.IsZero() {
		return 0
	}
	return t.started.Sub(t.EnqueuedAt)
}

func (t *Task) start() {
	t.mu.Lock()
	t.started = time.Now()
	t.mu.Unlock()
}

func (t *Task) finish(status Status, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return
	}
	t.status = status
	t.err = err
	t.finished = time.Now()
	close(t.done)
}
