package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/screen"
	"github.com/teslashibe/go-mimi/pkg/understanding"
)

// moveStep is the pointer update period during a smooth move.
const moveStep = 10 * time.Millisecond

// Result describes an executed decision.
type Result struct {
	Action    decision.ActionKind `json:"action"`
	Performed bool                `json:"performed"`
	Target    string              `json:"target,omitempty"`
	Point     *screen.Point       `json:"point,omitempty"`
	Text      string              `json:"text,omitempty"`
}

// Controller performs paced, confirmed input actions.
type Controller struct {
	driver Driver
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex // one action at a time
	last time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a controller over driver.
func NewController(driver Driver, opts ...Option) *Controller {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = AutoDecline
	}
	if !cfg.Screen.Valid() {
		cfg.Screen = driver.ScreenSize()
	}

	c := &Controller{
		driver: driver,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "automation"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	c.logger.Info("automation controller initialized",
		"screen", cfg.Screen,
		"safety_mode", cfg.SafetyMode)
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Screen returns the target display size.
func (c *Controller) Screen() screen.Size {
	return c.cfg.Screen
}

// SafetyMode reports whether actions need confirmation.
func (c *Controller) SafetyMode() bool {
	return c.cfg.SafetyMode
}

// Scale maps p from the detection size to the screen.
func (c *Controller) Scale(p screen.Point) screen.Point {
	return Scale(p, c.cfg.DetectionSize, c.cfg.Screen)
}

// Execute performs d. Click coordinates are scaled from the detection size;
// wait and talk succeed without touching the input devices.
func (c *Controller) Execute(ctx context.Context, d *decision.Decision) (Result, error) {
	if d == nil {
		return Result{}, ErrUnknownAction
	}
	res := Result{Action: d.Action, Target: d.Target}

	switch d.Action {
	case decision.ActionClick:
		if d.Coordinates == nil {
			return res, ErrNoCoordinates
		}
		p := c.Scale(*d.Coordinates)
		res.Point = &p
		if err := c.confirm(ctx, fmt.Sprintf("   Target: %s\n   Position: (%d, %d)", d.Target, p.X, p.Y)); err != nil {
			return res, err
		}
		if err := c.ClickAt(ctx, p, ButtonLeft, false); err != nil {
			return res, err
		}

	case decision.ActionType:
		if d.KeyboardInput == "" {
			return res, ErrNoText
		}
		res.Text = d.KeyboardInput
		if err := c.cfg.Guard.Check(d.KeyboardInput); err != nil {
			c.logger.Warn("blocked typing", "error", err)
			return res, err
		}
		if err := c.confirm(ctx, fmt.Sprintf("   Will type: '%s'", d.KeyboardInput)); err != nil {
			return res, err
		}
		if err := c.TypeText(ctx, d.KeyboardInput); err != nil {
			return res, err
		}

	case decision.ActionWait, decision.ActionTalk, "":
		return res, nil

	default:
		return res, fmt.Errorf("%w: %s", ErrUnknownAction, d.Action)
	}

	res.Performed = true
	return res, nil
}

func (c *Controller) confirm(ctx context.Context, prompt string) error {
	if !c.cfg.SafetyMode {
		return nil
	}
	ok, err := c.cfg.Confirmer.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		c.logger.Info("action cancelled by user")
		return ErrCancelled
	}
	return nil
}

// ClickAt moves smoothly to p (screen pixels) and clicks.
func (c *Controller) ClickAt(ctx context.Context, p screen.Point, button string, double bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pace(ctx); err != nil {
		return err
	}
	c.logger.Info("clicking", "x", p.X, "y", p.Y, "button", button)

	if err := c.moveSmooth(ctx, p); err != nil {
		return err
	}
	if err := c.sleep(ctx, c.cfg.ClickSettle); err != nil {
		return err
	}
	c.driver.Click(button, double)
	c.last = c.now()
	return nil
}

// ClickObject clicks the first object in a whose label contains name.
// It returns the screen position clicked.
func (c *Controller) ClickObject(ctx context.Context, a *understanding.ScreenAnalysis, name string) (screen.Point, error) {
	if a == nil {
		return screen.Point{}, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	obj, ok := a.Find(name)
	if !ok {
		return screen.Point{}, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	from := c.cfg.DetectionSize
	if a.ImageSize.Valid() {
		from = a.ImageSize
	}
	p := Scale(obj.Center, from, c.cfg.Screen)
	return p, c.ClickAt(ctx, p, ButtonLeft, false)
}

// TypeText types text one character at a time.
func (c *Controller) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return ErrNoText
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pace(ctx); err != nil {
		return err
	}
	c.logger.Info("typing", "chars", len([]rune(text)))

	for i, r := range []rune(text) {
		if i > 0 {
			if err := c.sleep(ctx, c.cfg.TypeInterval); err != nil {
				return err
			}
		}
		c.driver.TypeText(string(r))
	}
	c.last = c.now()
	return nil
}

// PressKey presses a key or a "+"-joined combination such as "ctrl+c".
func (c *Controller) PressKey(ctx context.Context, key string) error {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(key)), "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return fmt.Errorf("%w: key %q", ErrUnknownAction, key)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pace(ctx); err != nil {
		return err
	}
	c.logger.Info("pressing", "key", key)

	main := parts[len(parts)-1]
	if err := c.driver.KeyTap(main, parts[:len(parts)-1]...); err != nil {
		return fmt.Errorf("key %s: %w", key, err)
	}
	c.last = c.now()
	return nil
}

// pace waits until MinActionDelay has passed since the previous action.
func (c *Controller) pace(ctx context.Context) error {
	if c.last.IsZero() {
		return nil
	}
	wait := c.cfg.MinActionDelay - c.now().Sub(c.last)
	if wait <= 0 {
		return nil
	}
	c.logger.Debug("action too fast, waiting", "wait", wait)
	return c.sleep(ctx, wait)
}

// moveSmooth eases the pointer to p over min(MoveDuration, distance/1000px/s).
func (c *Controller) moveSmooth(ctx context.Context, p screen.Point) error {
	from := c.driver.Location()
	dx, dy := float64(p.X-from.X), float64(p.Y-from.Y)
	dist := math.Hypot(dx, dy)
	duration := min(c.cfg.MoveDuration, time.Duration(dist/1000*float64(time.Second)))

	steps := int(duration / moveStep)
	for i := 1; i < steps; i++ {
		t := easeOutQuad(float64(i) / float64(steps))
		c.driver.MoveTo(screen.Point{
			X: from.X + int(math.Round(dx*t)),
			Y: from.Y + int(math.Round(dy*t)),
		})
		if err := c.sleep(ctx, moveStep); err != nil {
			return err
		}
	}
	c.driver.MoveTo(p)
	return nil
}
