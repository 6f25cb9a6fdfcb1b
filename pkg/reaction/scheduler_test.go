package reaction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.WaitIdle(ctx))
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("task %s never finished", task.ID)
	}
}

func TestQueueBoundRespected(t *testing.T) {
	var processed atomic.Int32
	s := New(Config{Capacity: 3}, func(ctx context.Context, task *Task) error {
		processed.Add(1)
		return nil
	})

	var tasks []*Task
	accepted := 0
	for range 10 {
		task := NewTask(KindScreen, "", nil)
		tasks = append(tasks, task)
		if s.Enqueue(task) {
			accepted++
		}
	}
	assert.Equal(t, 3, accepted)
	assert.Equal(t, uint64(7), s.Stats().Dropped)
	assert.Equal(t, StateQueued, s.State())

	for _, task := range tasks[3:] {
		waitDone(t, task)
		assert.ErrorIs(t, task.Err(), ErrQueueFull)
	}

	s.Start(context.Background())
	waitIdle(t, s)
	s.Stop()

	assert.Equal(t, int32(3), processed.Load())
	st := s.Stats()
	assert.Equal(t, uint64(3), st.Processed)
	assert.Equal(t, 3, st.MaxQueueLen)
}

func TestFIFOOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	s := New(Config{Capacity: 10}, func(ctx context.Context, task *Task) error {
		mu.Lock()
		order = append(order, task.Prompt)
		mu.Unlock()
		return nil
	})

	for _, p := range []string{"t1", "t2", "t3"} {
		require.True(t, s.Enqueue(NewTask(KindScreen, p, nil)))
	}
	s.Start(context.Background())
	defer s.Stop()
	waitIdle(t, s)

	for _, p := range []string{"t4", "t5"} {
		require.True(t, s.Enqueue(NewTask(KindScreen, p, nil)))
	}
	waitIdle(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, order)
}

func TestNoOverlappingProcessing(t *testing.T) {
	var active, peak atomic.Int32
	s := New(Config{Capacity: 100}, func(ctx context.Context, task *Task) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				s.Enqueue(NewTask(KindScreen, "", nil))
			}
		}()
	}
	wg.Wait()
	waitIdle(t, s)

	assert.Equal(t, int32(1), peak.Load())
	st := s.Stats()
	assert.Equal(t, st.Enqueued, st.Processed+st.Failed)
}

func TestFailureIsolation(t *testing.T) {
	boom := errors.New("generation failed")
	var (
		mu   sync.Mutex
		seen []string
	)
	s := New(Config{}, func(ctx context.Context, task *Task) error {
		mu.Lock()
		seen = append(seen, task.Prompt)
		mu.Unlock()
		switch task.Prompt {
		case "t2":
			return boom
		case "t3":
			panic("parser exploded")
		}
		return nil
	})

	t1 := NewTask(KindScreen, "t1", nil)
	t2 := NewTask(KindScreen, "t2", nil)
	t3 := NewTask(KindScreen, "t3", nil)
	t4 := NewTask(KindScreen, "t4", nil)
	for _, task := range []*Task{t1, t2, t3, t4} {
		require.True(t, s.Enqueue(task))
	}
	s.Start(context.Background())
	defer s.Stop()
	waitIdle(t, s)

	assert.Equal(t, StatusDone, t1.Status())
	assert.Equal(t, StatusFailed, t2.Status())
	assert.ErrorIs(t, t2.Err(), boom)
	assert.Equal(t, StatusFailed, t3.Status())
	assert.ErrorIs(t, t3.Err(), ErrPanic)
	assert.Equal(t, StatusDone, t4.Status())

	t5 := NewTask(KindChat, "t5", nil)
	require.True(t, s.Enqueue(t5))
	waitDone(t, t5)
	assert.Equal(t, StatusDone, t5.Status())

	st := s.Stats()
	assert.Equal(t, uint64(3), st.Processed)
	assert.Equal(t, uint64(2), st.Failed)
	mu.Lock()
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, seen)
	mu.Unlock()
}

func TestTaskTimeout(t *testing.T) {
	s := New(Config{TaskTimeout: 20 * time.Millisecond}, func(ctx context.Context, task *Task) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Start(context.Background())
	defer s.Stop()

	task := NewTask(KindScreen, "", nil)
	require.True(t, s.Enqueue(task))
	waitDone(t, task)

	assert.ErrorIs(t, task.Err(), context.DeadlineExceeded)
	assert.Equal(t, uint64(1), s.Stats().TimedOut)
	assert.False(t, s.Busy())
}

func TestCoalesceAtAdmission(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := New(Config{Strategy: CoalesceAtAdmission}, func(ctx context.Context, task *Task) error {
		started <- struct{}{}
		<-release
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.Enqueue(NewTask(KindScreen, "first", nil)))
	<-started
	assert.Equal(t, StateProcessing, s.State())

	second := NewTask(KindScreen, "second", nil)
	assert.False(t, s.Enqueue(second))
	assert.ErrorIs(t, second.Err(), ErrCoalesced)
	assert.Equal(t, uint64(1), s.Stats().Coalesced)

	close(release)
	waitIdle(t, s)

	require.True(t, s.Enqueue(NewTask(KindScreen, "third", nil)))
	<-started
	waitIdle(t, s)
	assert.Equal(t, uint64(2), s.Stats().Processed)
}

func TestCoalesceAtAdmissionQueuesChat(t *testing.T) {
	started := make(chan Kind, 4)
	release := make(chan struct{})
	s := New(Config{Strategy: CoalesceAtAdmission, Capacity: 2}, func(ctx context.Context, task *Task) error {
		started <- task.Kind
		<-release
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.Enqueue(NewTask(KindScreen, "", nil)))
	<-started

	chat := NewTask(KindChat, "are you there?", nil)
	assert.True(t, s.Enqueue(chat))
	assert.False(t, s.Enqueue(NewTask(KindScreen, "", nil)))
	assert.False(t, s.Enqueue(NewTask(KindComment, "", nil)))
	assert.Equal(t, 1, s.Len())

	close(release)
	waitDone(t, chat)
	assert.Equal(t, StatusDone, chat.Status())
	assert.Equal(t, KindChat, <-started)
	waitIdle(t, s)

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Coalesced)
	assert.Equal(t, uint64(2), st.Processed)
}

func TestSequentialChatWaitsForCurrentTask(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var order []Kind
	var mu sync.Mutex
	s := New(Config{Mode: ModeSequential}, func(ctx context.Context, task *Task) error {
		mu.Lock()
		order = append(order, task.Kind)
		mu.Unlock()
		if task.Kind == KindScreen {
			started <- struct{}{}
			<-release
		}
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	go s.Enqueue(NewTask(KindScreen, "", nil))
	<-started

	chat := NewTask(KindChat, "hello", nil)
	admitted := make(chan bool, 1)
	go func() { admitted <- s.Enqueue(chat) }()

	assert.False(t, s.Enqueue(NewTask(KindScreen, "", nil)))
	select {
	case <-chat.Done():
		t.Fatal("chat ran while a reaction was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case ok := <-admitted:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("chat never ran")
	}
	assert.Equal(t, StatusDone, chat.Status())

	mu.Lock()
	assert.Equal(t, []Kind{KindScreen, KindChat}, order)
	mu.Unlock()
}

func TestCoalesceAtGenerationQueuesWhileBusy(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	s := New(Config{Capacity: 5}, func(ctx context.Context, task *Task) error {
		started <- struct{}{}
		<-release
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.Enqueue(NewTask(KindScreen, "", nil)))
	<-started
	for range 3 {
		assert.True(t, s.Enqueue(NewTask(KindScreen, "", nil)))
	}
	assert.Equal(t, 3, s.Len())

	close(release)
	waitIdle(t, s)
	assert.Equal(t, uint64(4), s.Stats().Processed)
}

func TestStopFinishesCurrentAndAbandonsQueued(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var cutShort atomic.Bool
	s := New(Config{}, func(ctx context.Context, task *Task) error {
		started <- struct{}{}
		<-release
		if ctx.Err() != nil {
			cutShort.Store(true)
		}
		return nil
	})
	s.Start(context.Background())

	current := NewTask(KindScreen, "current", nil)
	require.True(t, s.Enqueue(current))
	<-started

	queued := []*Task{NewTask(KindScreen, "a", nil), NewTask(KindScreen, "b", nil)}
	for _, task := range queued {
		require.True(t, s.Enqueue(task))
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Equal(t, StatusDone, current.Status())
	assert.False(t, cutShort.Load())
	for _, task := range queued {
		assert.Equal(t, StatusAbandoned, task.Status())
		assert.ErrorIs(t, task.Err(), ErrStopped)
	}
	assert.Equal(t, uint64(2), s.Stats().Abandoned)
	assert.Equal(t, StateStopped, s.State())

	late := NewTask(KindScreen, "late", nil)
	assert.False(t, s.Enqueue(late))
	assert.Equal(t, StatusAbandoned, late.Status())

	s.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	s := New(Config{}, func(ctx context.Context, task *Task) error { return nil })
	task := NewTask(KindScreen, "", nil)
	require.True(t, s.Enqueue(task))
	s.Stop()
	assert.Equal(t, StatusAbandoned, task.Status())
	waitIdle(t, s)

	s.Start(context.Background())
	assert.Equal(t, StateStopped, s.State())
}

func TestContextCancelStopsWorker(t *testing.T) {
	s := New(Config{PollInterval: 10 * time.Millisecond}, func(ctx context.Context, task *Task) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return s.State() == StateStopped }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.Enqueue(NewTask(KindScreen, "", nil)))
	s.Stop()
}

func TestSequentialModeRunsInline(t *testing.T) {
	var s *Scheduler
	var nested bool
	calls := 0
	s = New(Config{Mode: ModeSequential}, func(ctx context.Context, task *Task) error {
		calls++
		assert.True(t, s.Busy())
		nested = s.Enqueue(NewTask(KindComment, "nested", nil))
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	task := NewTask(KindScreen, "", nil)
	assert.True(t, s.Enqueue(task))
	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusDone, task.Status())
	assert.False(t, nested)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Processed)
	assert.Equal(t, uint64(1), st.Coalesced)
	assert.False(t, st.Busy)

	select {
	case <-s.Idle():
	default:
		t.Fatal("scheduler should be idle")
	}
}

func TestIdleSignal(t *testing.T) {
	release := make(chan struct{})
	s := New(Config{}, func(ctx context.Context, task *Task) error {
		<-release
		return nil
	})

	select {
	case <-s.Idle():
	default:
		t.Fatal("new scheduler should be idle")
	}

	require.True(t, s.Enqueue(NewTask(KindScreen, "", nil)))
	idle := s.Idle()
	select {
	case <-idle:
		t.Fatal("idle with queued work")
	default:
	}

	s.Start(context.Background())
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitIdle(ctx), context.DeadlineExceeded)

	close(release)
	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("idle never signalled")
	}
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, CoalesceAtAdmission, ParseStrategy("admission"))
	assert.Equal(t, CoalesceAtGeneration, ParseStrategy(""))
	assert.Equal(t, ModeSequential, ParseMode("sequential"))
	assert.Equal(t, ModeAsync, ParseMode("threaded"))
	assert.Equal(t, "generation", CoalesceAtGeneration.String())
}

func TestConfigDefaults(t *testing.T) {
	s := New(Config{Capacity: -1, TaskTimeout: -time.Second}, nil)
	cfg := s.Config()
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, time.Duration(0), cfg.TaskTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.NotNil(t, cfg.Logger)
}
