// Package reaction serializes reaction work (generate a reply, speak it,
// act on it) onto a single worker fed by a bounded FIFO queue.
//
// The producer (the capture loop) never blocks: Enqueue either admits a
// task or drops it and counts the drop. The worker processes one task at a
// time in arrival order; a failing or panicking handler is logged and the
// worker moves on. Stop lets the current task finish and abandons whatever
// is still queued.
package reaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one task. It is never called concurrently by the same
// scheduler.
type Handler func(ctx context.Context, t *Task) error

// State is the externally visible scheduler state.
type State string

const (
	StateIdle       State = "idle"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateStopped    State = "stopped"
)

// Stats holds scheduler counters.
type Stats struct {
	Enqueued    uint64        `json:"enqueued"`
	Dropped     uint64        `json:"dropped"`
	Coalesced   uint64        `json:"coalesced"`
	Processed   uint64        `json:"processed"`
	Failed      uint64        `json:"failed"`
	TimedOut    uint64        `json:"timed_out"`
	Abandoned   uint64        `json:"abandoned"`
	QueueLen    int           `json:"queue_len"`
	MaxQueueLen int           `json:"max_queue_len"`
	Busy        bool          `json:"busy"`
	LastLatency time.Duration `json:"last_latency"`
}

// Scheduler is a bounded single-worker task queue.
type Scheduler struct {
	config  Config
	handler Handler
	logger  *slog.Logger

	// inline serializes handler calls in sequential mode.
	inline sync.Mutex

	mu       sync.Mutex
	queue    []*Task
	busy     bool
	current  *Task
	started  bool
	stopping bool
	stopped  bool
	idle     chan struct{} // closed while idle
	stats    Stats

	wake   chan struct{}
	exited chan struct{}
	cancel context.CancelFunc
}

// New creates a scheduler. Zero config fields take defaults.
func New(cfg Config, handler Handler) *Scheduler {
	cfg.applyDefaults()
	idle := make(chan struct{})
	close(idle)
	return &Scheduler{
		config:  cfg,
		handler: handler,
		logger:  cfg.Logger.With("component", "reaction"),
		idle:    idle,
		wake:    make(chan struct{}, 1),
		exited:  make(chan struct{}),
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.config }

// Start launches the worker. In sequential mode there is no worker and
// Start only arms ctx cancellation. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		"mode", s.config.Mode,
		"strategy", s.config.Strategy,
		"capacity", s.config.Capacity,
		"task_timeout", s.config.TaskTimeout)

	if s.config.Mode == ModeSequential {
		go func() {
			<-ctx.Done()
			s.shutdown()
			close(s.exited)
		}()
		return
	}
	go s.run(ctx)
}

// Enqueue offers a task without blocking (except in sequential mode, where
// the handler runs on the caller). It reports whether the task was
// admitted. Refused tasks are finished as abandoned.
//
// Admission coalescing only refuses coalescible kinds; chat tasks are
// queued behind the current reaction up to Capacity.
func (s *Scheduler) Enqueue(t *Task) bool {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	if s.config.Mode == ModeSequential {
		return s.runInline(t)
	}

	s.mu.Lock()
	if s.stopping || s.stopped {
		s.mu.Unlock()
		t.finish(StatusAbandoned, ErrStopped)
		return false
	}
	if s.config.Strategy == CoalesceAtAdmission && t.Kind.Coalescible() && (s.busy || len(s.queue) > 0) {
		s.stats.Coalesced++
		s.mu.Unlock()
		t.finish(StatusAbandoned, ErrCoalesced)
		s.logger.Debug("change coalesced, reaction outstanding", "task", t.ID, "kind", t.Kind)
		return false
	}
	if len(s.queue) >= s.config.Capacity {
		s.stats.Dropped++
		dropped := s.stats.Dropped
		s.mu.Unlock()
		t.finish(StatusAbandoned, ErrQueueFull)
		s.logger.Warn("queue full, dropping task", "task", t.ID, "kind", t.Kind, "dropped", dropped)
		return false
	}

	s.queue = append(s.queue, t)
	s.stats.Enqueued++
	s.stats.MaxQueueLen = max(s.stats.MaxQueueLen, len(s.queue))
	s.markBusyLocked()
	pos, busy := len(s.queue), s.busy
	s.mu.Unlock()

	if busy {
		s.logger.Debug("worker busy, queued for later", "task", t.ID, "kind", t.Kind, "position", pos)
	} else {
		s.logger.Debug("task queued", "task", t.ID, "kind", t.Kind, "position", pos)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// runInline is Enqueue in sequential mode: the handler runs now. While
// another caller is mid-task a coalescible task is refused and a chat task
// blocks until it can run. A handler must not enqueue chat itself.
func (s *Scheduler) runInline(t *Task) bool {
	if t.Kind.Coalescible() {
		if !s.inline.TryLock() {
			s.mu.Lock()
			s.stats.Coalesced++
			s.mu.Unlock()
			t.finish(StatusAbandoned, ErrCoalesced)
			return false
		}
	} else {
		s.inline.Lock()
	}
	defer s.inline.Unlock()

	s.mu.Lock()
	if s.stopping || s.stopped {
		s.mu.Unlock()
		t.finish(StatusAbandoned, ErrStopped)
		return false
	}
	s.stats.Enqueued++
	s.busy = true
	s.current = t
	s.markBusyLocked()
	s.mu.Unlock()

	s.process(context.Background(), t)
	return true
}

// markBusyLocked swaps in a fresh idle channel on leaving the idle state.
func (s *Scheduler) markBusyLocked() {
	select {
	case <-s.idle:
		s.idle = make(chan struct{})
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.exited)
	defer s.shutdown()

	timer := time.NewTimer(s.config.PollInterval)
	defer timer.Stop()

	for {
		t, ok := s.next()
		if !ok {
			return
		}
		if t != nil {
			s.process(ctx, t)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.config.PollInterval)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// next pops the queue head and marks the worker busy. It returns ok=false
// when the worker should exit and a nil task when the queue is empty.
func (s *Scheduler) next() (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return nil, false
	}
	if len(s.queue) == 0 {
		return nil, true
	}
	t := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.busy = true
	s.current = t
	return t, true
}

func (s *Scheduler) process(ctx context.Context, t *Task) {
	t.start()
	s.logger.Debug("processing task",
		"task", t.ID,
		"kind", t.Kind,
		"waited_ms", t.Wait().Milliseconds(),
		"queued", s.Len())

	err := s.invoke(ctx, t)

	if err != nil {
		t.finish(StatusFailed, err)
	} else {
		t.finish(StatusDone, nil)
	}
	latency := t.Latency()

	s.mu.Lock()
	s.busy = false
	s.current = nil
	s.stats.LastLatency = latency
	if err != nil {
		s.stats.Failed++
		if ctx.Err() == nil && isTimeout(err) {
			s.stats.TimedOut++
		}
	} else {
		s.stats.Processed++
	}
	if len(s.queue) == 0 {
		close(s.idle)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("task failed", "task", t.ID, "kind", t.Kind, "error", err, "latency_ms", latency.Milliseconds())
		return
	}
	s.logger.Debug("task done", "task", t.ID, "kind", t.Kind, "latency_ms", latency.Milliseconds())
}

// invoke runs the handler under the task deadline and turns panics into
// errors.
func (s *Scheduler) invoke(ctx context.Context, t *Task) (err error) {
	if s.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return s.handler(ctx, t)
}

// shutdown abandons the queue. The worker has already finished its
// current task.
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.stopping = true
	s.stopped = true
	abandoned := s.queue
	s.queue = nil
	s.stats.Abandoned += uint64(len(abandoned))
	if !s.busy {
		select {
		case <-s.idle:
		default:
			close(s.idle)
		}
	}
	s.mu.Unlock()

	for _, t := range abandoned {
		t.finish(StatusAbandoned, ErrStopped)
	}
	if len(abandoned) > 0 {
		s.logger.Info("abandoned queued tasks", "count", len(abandoned))
	}
}

// Stop asks the worker to exit after its current task, abandoning queued
// tasks, and waits for it. Safe to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.stopping = true
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		s.shutdown()
		return
	}

	// Wake the worker out of its queue wait. The current task keeps its
	// own context so it is never cut short here.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	if s.config.Mode == ModeSequential && cancel != nil {
		cancel()
	}
	<-s.exited
	if cancel != nil {
		cancel()
	}
	s.logger.Info("scheduler stopped", "stats", s.Stats())
}

// Idle returns a channel closed once the scheduler is idle: nothing queued
// and nothing processing. A fresh channel is returned after new work
// arrives.
func (s *Scheduler) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// WaitIdle blocks until the scheduler is idle or ctx is done.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	select {
	case <-s.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped && !s.busy:
		return StateStopped
	case s.busy:
		return StateProcessing
	case len(s.queue) > 0:
		return StateQueued
	default:
		return StateIdle
	}
}

// Busy reports whether a task is being processed.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Current returns the task being processed, or nil.
func (s *Scheduler) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Len returns the number of queued tasks, excluding the one in progress.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.QueueLen = len(s.queue)
	st.Busy = s.busy
	return st
}
