// Package companion wires the screen companion together: a capture loop
// feeds the scene analyzer and change detector, and every reaction (screen
// changes, idle comments, questions and user chat) runs on one reaction
// scheduler so only one reply is generated and spoken at a time.
//
// All run state lives on the Companion value; there are no package
// globals. The latest frame and the last analysis are the only state
// shared between the capture loop and the worker, guarded by one mutex.
package companion

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-mimi/pkg/automation"
	"github.com/teslashibe/go-mimi/pkg/change"
	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/publish"
	"github.com/teslashibe/go-mimi/pkg/reaction"
	"github.com/teslashibe/go-mimi/pkg/screen"
	"github.com/teslashibe/go-mimi/pkg/transcript"
	"github.com/teslashibe/go-mimi/pkg/understanding"
)

// Analyzer turns a frame into a screen analysis.
type Analyzer interface {
	Analyze(ctx context.Context, frame *screen.Frame) (*understanding.ScreenAnalysis, error)
}

// Speaker is the voice output.
type Speaker interface {
	Speak(ctx context.Context, text string, block bool) error
	IsBusy() bool
	Stop()
	Enabled() bool
	SetEnabled(enabled bool)
}

// Actuator performs desktop actions.
type Actuator interface {
	Execute(ctx context.Context, d *decision.Decision) (automation.Result, error)
	ClickObject(ctx context.Context, a *understanding.ScreenAnalysis, name string) (screen.Point, error)
}

// AppLauncher opens web pages and applications.
type AppLauncher interface {
	OpenYouTube(ctx context.Context) error
	SearchYouTube(ctx context.Context, query string) error
	OpenApp(ctx context.Context, name string) error
}

// Publisher receives every reaction.
type Publisher interface {
	PublishReaction(r publish.Reaction) error
}

// Deps are the companion's collaborators. Source, Analyzer, Changes and
// Generator are required; the rest are optional.
type Deps struct {
	Source    screen.Source
	Analyzer  Analyzer
	Changes   *change.Detector
	Generator decision.Generator

	Voice      Speaker
	Actions    Actuator
	Launcher   AppLauncher
	Transcript *transcript.Transcript
	Publisher  Publisher
}

// Companion is the running assistant.
type Companion struct {
	config Config
	deps   Deps
	sched  *reaction.Scheduler
	logger *slog.Logger
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu             sync.Mutex
	latest         *screen.Frame
	analysis       *understanding.ScreenAnalysis
	lastDecision   *decision.Decision
	lastSpeech     string
	frames         uint64
	analyzed       uint64
	analysisErrors uint64
	changes        uint64
	responses      uint64
	paused         bool
	running        bool
	finished       bool
	startedAt      time.Time
	lastQuestion   time.Time
	lastComment    time.Time

	obsMu    sync.RWMutex
	onUpdate []func(Snapshot)
	onEntry  []func(transcript.Entry)
}

// New creates a companion. The transcript defaults to an in-memory one.
func New(deps Deps, cfg Config) (*Companion, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("%w: frame source", ErrMissingDependency)
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("%w: analyzer", ErrMissingDependency)
	case deps.Changes == nil:
		return nil, fmt.Errorf("%w: change detector", ErrMissingDependency)
	case deps.Generator == nil:
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	}
	if deps.Transcript == nil {
		t, err := transcript.New(nil, transcript.DefaultCapacity, cfg.Logger)
		if err != nil {
			return nil, err
		}
		deps.Transcript = t
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d696d69))
	}

	c := &Companion{
		config: cfg,
		deps:   deps,
		logger: cfg.Logger.With("component", "companion"),
		now:    time.Now,
		rng:    rng,
	}
	if cfg.Scheduler.Logger == nil {
		cfg.Scheduler.Logger = cfg.Logger
	}
	c.sched = reaction.New(cfg.Scheduler, c.handle)
	return c, nil
}

// Scheduler exposes the reaction scheduler.
func (c *Companion) Scheduler() *reaction.Scheduler { return c.sched }

// Transcript returns the reaction history.
func (c *Companion) Transcript() *transcript.Transcript { return c.deps.Transcript }

// Run captures frames until the configured duration elapses or ctx is
// cancelled, then lets the current reaction finish, abandons queued ones
// and returns. A companion runs once.
func (c *Companion) Run(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.running:
		c.mu.Unlock()
		return ErrRunning
	case c.finished:
		c.mu.Unlock()
		return ErrFinished
	}
	c.running = true
	now := c.now()
	c.startedAt = now
	c.lastQuestion = now
	c.lastComment = now
	c.mu.Unlock()

	c.logger.Info("companion starting",
		"name", c.config.Name,
		"fps", c.config.FPS,
		"duration", c.config.Duration,
		"style", c.config.Style,
		"voice", c.voiceEnabled(),
		"automation", c.deps.Actions != nil)

	// The scheduler outlives ctx so that cancelling the capture never cuts
	// a reply off mid-sentence; Stop below ends it.
	c.sched.Start(context.WithoutCancel(ctx))

	if c.config.Greeting {
		c.sched.Enqueue(reaction.NewTask(reaction.KindComment, greeting(c.config.Name), nil))
	}

	loopCtx, stopLoops := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if c.config.CommentChance > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.commentLoop(loopCtx)
		}()
	}

	frames := screen.Stream(loopCtx, c.deps.Source, screen.StreamConfig{
		FPS:      c.config.FPS,
		Duration: c.config.Duration,
		Logger:   c.config.Logger,
	})
	for frame := range frames {
		c.observe(loopCtx, frame)
	}

	stopLoops()
	wg.Wait()
	c.sched.Stop()

	if c.config.Greeting {
		c.sayGoodbye(context.WithoutCancel(ctx))
	}

	c.mu.Lock()
	c.running = false
	c.finished = true
	c.mu.Unlock()
	c.notify()

	c.logger.Info("companion stopped", "snapshot", c.Snapshot())
	return nil
}

// observe is the producer step for one captured frame.
func (c *Companion) observe(ctx context.Context, frame *screen.Frame) {
	c.mu.Lock()
	c.frames++
	c.latest = frame.Clone()
	paused := c.paused
	c.mu.Unlock()

	if paused {
		return
	}

	a, err := c.deps.Analyzer.Analyze(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		c.analysisErrors++
		c.mu.Unlock()
		c.logger.Warn("analysis failed, skipping frame", "seq", frame.Seq, "error", err)
		return
	}
	c.setAnalysis(a)

	res := c.deps.Changes.Observe(a)
	if res.Changed {
		c.mu.Lock()
		c.changes++
		c.mu.Unlock()

		task := reaction.NewTask(reaction.KindScreen, changePrompt(res), a)
		accepted := c.sched.Enqueue(task)
		c.logger.Debug("screen changed",
			"seq", frame.Seq,
			"scene", a.SceneLabel,
			"added", len(res.Added),
			"removed", len(res.Removed),
			"accepted", accepted)
	}
	c.notify()
}

func (c *Companion) setAnalysis(a *understanding.ScreenAnalysis) {
	c.mu.Lock()
	c.analysis = a
	c.analyzed++
	c.mu.Unlock()
}

// latestFrame returns a private copy of the most recent frame.
func (c *Companion) latestFrame() *screen.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return nil
	}
	return c.latest.Clone()
}

// Analysis returns the most recent analysis, or nil.
func (c *Companion) Analysis() *understanding.ScreenAnalysis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysis
}

// FrameJPEG encodes the most recent frame.
func (c *Companion) FrameJPEG(quality int) ([]byte, error) {
	frame := c.latestFrame()
	if frame == nil {
		return nil, ErrNoFrame
	}
	return frame.JPEG(quality)
}

// AnnotatedFrameJPEG encodes the most recent frame with the last
// analysis drawn on it.
func (c *Companion) AnnotatedFrameJPEG(quality int) ([]byte, error) {
	frame := c.latestFrame()
	if frame == nil {
		return nil, ErrNoFrame
	}
	annotated, err := understanding.Annotate(frame, c.Analysis())
	if err != nil {
		return nil, err
	}
	return annotated.JPEG(quality)
}

// Say queues a user message. The reply is produced on the worker; wait on
// the task's Done channel and read its Result (a *decision.Decision) to
// get it. Chat is never coalesced away: in sequential mode Say blocks
// until the current reaction and the reply are done.
func (c *Companion) Say(text string) (*reaction.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	task := reaction.NewTask(reaction.KindChat, text, nil)
	if !c.sched.Enqueue(task) {
		return task, task.Err()
	}
	return task, nil
}

// SetPaused pauses or resumes screen reactions and idle comments. Chat
// keeps working while paused.
func (c *Companion) SetPaused(paused bool) {
	c.mu.Lock()
	changed := c.paused != paused
	c.paused = paused
	c.mu.Unlock()
	if !changed {
		return
	}
	c.logger.Info("pause toggled", "paused", paused)
	c.notify()
}

// Paused reports whether screen reactions are paused.
func (c *Companion) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetVoice enables or disables speech.
func (c *Companion) SetVoice(enabled bool) {
	if c.deps.Voice == nil {
		return
	}
	c.deps.Voice.SetEnabled(enabled)
	c.logger.Info("voice toggled", "enabled", enabled)
	c.notify()
}

// StopSpeaking interrupts the current utterance.
func (c *Companion) StopSpeaking() {
	if c.deps.Voice != nil {
		c.deps.Voice.Stop()
	}
}

func (c *Companion) voiceEnabled() bool {
	return c.deps.Voice != nil && c.deps.Voice.Enabled()
}

// OnUpdate registers fn to receive a snapshot after every state change.
// Callbacks run on the companion's goroutines and must not block.
func (c *Companion) OnUpdate(fn func(Snapshot)) {
	c.obsMu.Lock()
	c.onUpdate = append(c.onUpdate, fn)
	c.obsMu.Unlock()
}

// OnEntry registers fn to receive every transcript entry.
func (c *Companion) OnEntry(fn func(transcript.Entry)) {
	c.obsMu.Lock()
	c.onEntry = append(c.onEntry, fn)
	c.obsMu.Unlock()
}

func (c *Companion) notify() {
	c.obsMu.RLock()
	fns := c.onUpdate
	c.obsMu.RUnlock()
	if len(fns) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// commentLoop enqueues idle comments while nothing else is going on.
func (c *Companion) commentLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.CommentCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Paused() || c.sched.State() != reaction.StateIdle {
				continue
			}
			if c.deps.Voice != nil && c.deps.Voice.IsBusy() {
				continue
			}
			if c.shouldComment() {
				c.sched.Enqueue(reaction.NewTask(reaction.KindComment, "", nil))
			}
		}
	}
}

// shouldComment rolls for an idle comment once a random interval has
// passed since the last one.
func (c *Companion) shouldComment() bool {
	c.rngMu.Lock()
	span := c.config.CommentMaxInterval - c.config.CommentMinInterval
	interval := c.config.CommentMinInterval
	if span > 0 {
		interval += time.Duration(c.rng.Int64N(int64(span) + 1))
	}
	roll := c.rng.Float64()
	c.rngMu.Unlock()

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastComment) <= interval {
		return false
	}
	if roll >= c.config.CommentChance {
		return false
	}
	c.lastComment = now
	return true
}

// shouldAskQuestion reports whether a screen reaction should be replaced
// by a question about the screen.
func (c *Companion) shouldAskQuestion(a *understanding.ScreenAnalysis) bool {
	if c.config.QuestionInterval <= 0 {
		return false
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastQuestion) < c.config.QuestionInterval {
		return false
	}
	if len(a.Objects) < c.config.QuestionMinObjects {
		return false
	}
	c.lastQuestion = now
	return true
}

func (c *Companion) pick(options []string) string {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return options[c.rng.IntN(len(options))]
}

func (c *Companion) sayGoodbye(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c.record(ctx, string(reaction.KindComment), "", decision.Say(farewell, decision.EmotionHappy), nil)
	c.speak(ctx, farewell)
}
