package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/detection"
	"github.com/teslashibe/go-mimi/pkg/screen"
	"github.com/teslashibe/go-mimi/pkg/understanding"
)

// fakeClock advances only when the controller sleeps.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sleeps = append(f.sleeps, d)
	f.t = f.t.Add(d)
	return nil
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *MockDriver, *fakeClock) {
	t.Helper()
	drv := NewMockDriver(screen.Size{W: 1920, H: 1080})
	c := NewController(drv, append([]Option{WithSafetyMode(false)}, opts...)...)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c.now = clock.now
	c.sleep = clock.sleep
	return c, drv, clock
}

func TestScale(t *testing.T) {
	from := screen.Size{W: 640, H: 640}
	to := screen.Size{W: 1920, H: 1080}

	tests := []struct {
		in, want screen.Point
	}{
		{screen.Point{X: 320, Y: 320}, screen.Point{X: 960, Y: 540}},
		{screen.Point{X: 0, Y: 0}, screen.Point{X: 0, Y: 0}},
		{screen.Point{X: 640, Y: 640}, screen.Point{X: 1919, Y: 1079}},
		// 101/640*1080 = 170.44, 213/640*1920 = 639
		{screen.Point{X: 213, Y: 101}, screen.Point{X: 639, Y: 170}},
		// 1/640*1080 = 1.6875 rounds up
		{screen.Point{X: 1, Y: 1}, screen.Point{X: 3, Y: 2}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Scale(tt.in, from, to), "scale %v", tt.in)
	}

	assert.Equal(t, screen.Point{X: 5, Y: 5}, Scale(screen.Point{X: 5, Y: 5}, screen.Size{}, to))
}

func TestScaleClampsToScreen(t *testing.T) {
	from := screen.Size{W: 640, H: 640}
	to := screen.Size{W: 1920, H: 1080}

	assert.Equal(t, screen.Point{X: 1919, Y: 1079}, Scale(screen.Point{X: 900, Y: 700}, from, to))
	assert.Equal(t, screen.Point{X: 0, Y: 0}, Scale(screen.Point{X: -40, Y: -1}, from, to))
	assert.Equal(t, screen.Point{X: 0, Y: 1079}, Scale(screen.Point{X: -5, Y: 2000}, from, to))
}

func TestExecuteClick(t *testing.T) {
	c, drv, _ := newTestController(t)

	d := &decision.Decision{
		Action:      decision.ActionClick,
		Target:      "Search box",
		Coordinates: &screen.Point{X: 320, Y: 100},
	}
	res, err := c.Execute(context.Background(), d)
	require.NoError(t, err)

	assert.True(t, res.Performed)
	require.NotNil(t, res.Point)
	assert.Equal(t, screen.Point{X: 960, Y: 169}, *res.Point)
	assert.Equal(t, []string{"click left [960, 169]"}, drv.Events())
	assert.Equal(t, *res.Point, drv.Location())
}

func TestExecuteClickWithoutCoordinates(t *testing.T) {
	c, drv, _ := newTestController(t)

	_, err := c.Execute(context.Background(), &decision.Decision{Action: decision.ActionClick, Target: "ghost"})
	assert.ErrorIs(t, err, ErrNoCoordinates)
	assert.Empty(t, drv.Events())
}

func TestExecuteType(t *testing.T) {
	c, drv, clock := newTestController(t)

	res, err := c.Execute(context.Background(), &decision.Decision{Action: decision.ActionType, KeyboardInput: "Hello"})
	require.NoError(t, err)
	assert.True(t, res.Performed)
	assert.Equal(t, "Hello", drv.Typed())

	// four gaps between five keystrokes
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond}, clock.sleeps)

	_, err = c.Execute(context.Background(), &decision.Decision{Action: decision.ActionType})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExecuteTypeGuarded(t *testing.T) {
	c, drv, _ := newTestController(t)

	_, err := c.Execute(context.Background(), &decision.Decision{Action: decision.ActionType, KeyboardInput: "sudo rm -rf /"})
	assert.ErrorIs(t, err, ErrUnsafeInput)
	assert.Empty(t, drv.Typed())
}

func TestExecuteNoOps(t *testing.T) {
	c, drv, _ := newTestController(t)

	for _, a := range []decision.ActionKind{decision.ActionWait, decision.ActionTalk} {
		res, err := c.Execute(context.Background(), &decision.Decision{Action: a})
		require.NoError(t, err)
		assert.False(t, res.Performed)
	}
	assert.Empty(t, drv.Events())

	_, err := c.Execute(context.Background(), &decision.Decision{Action: "dance"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSafetyMode(t *testing.T) {
	var prompts []string
	record := func(answer bool) Confirmer {
		return ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
			prompts = append(prompts, prompt)
			return answer, nil
		})
	}
	d := &decision.Decision{Action: decision.ActionClick, Target: "Send", Coordinates: &screen.Point{X: 10, Y: 10}}

	c, drv, _ := newTestController(t, WithSafetyMode(true), WithConfirmer(record(false)))
	_, err := c.Execute(context.Background(), d)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, drv.Events())
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Target: Send")

	c, drv, _ = newTestController(t, WithSafetyMode(true), WithConfirmer(record(true)))
	_, err = c.Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Len(t, drv.Events(), 1)
}

func TestStdinConfirmer(t *testing.T) {
	var out strings.Builder
	conf := NewStdinConfirmer(strings.NewReader("Y\nno\n"), &out)

	ok, err := conf.Confirm(context.Background(), "   Will type: 'hi'")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = conf.Confirm(context.Background(), "again")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Contains(t, out.String(), "Proceed? (y/n): ")

	_, err = conf.Confirm(context.Background(), "eof")
	assert.Error(t, err)
}

func TestMinActionDelay(t *testing.T) {
	c, _, clock := newTestController(t, WithMotion(0, 0))
	ctx := context.Background()

	require.NoError(t, c.ClickAt(ctx, screen.Point{X: 1, Y: 1}, ButtonLeft, false))
	clock.sleeps = nil

	clock.t = clock.t.Add(200 * time.Millisecond)
	require.NoError(t, c.PressKey(ctx, "enter"))
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, clock.sleeps)

	clock.sleeps = nil
	clock.t = clock.t.Add(time.Second)
	require.NoError(t, c.PressKey(ctx, "tab"))
	assert.Empty(t, clock.sleeps)
}

func TestSmoothMove(t *testing.T) {
	c, drv, _ := newTestController(t)

	// 300px at 1000px/s takes 300ms: 30 steps
	require.NoError(t, c.ClickAt(context.Background(), screen.Point{X: 300, Y: 0}, ButtonLeft, true))
	moves := drv.Moves()
	require.Len(t, moves, 30)
	assert.Equal(t, screen.Point{X: 300, Y: 0}, moves[len(moves)-1])
	for i := 1; i < len(moves); i++ {
		assert.GreaterOrEqual(t, moves[i].X, moves[i-1].X, "pointer moves monotonically")
	}
	// easing front-loads the distance
	assert.Greater(t, moves[14].X, 150)
	assert.Equal(t, "dblclick left [300, 0]", drv.Events()[0])
}

func TestPressKeyCombination(t *testing.T) {
	c, drv, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.PressKey(ctx, "Ctrl+C"))
	require.NoError(t, c.PressKey(ctx, "ctrl+shift+t"))
	assert.Equal(t, []string{"key ctrl+c", "key ctrl+shift+t"}, drv.Events())

	assert.ErrorIs(t, c.PressKey(ctx, "ctrl+"), ErrUnknownAction)

	drv.KeyTapFunc = func(string, ...string) error { return errors.New("no such key") }
	assert.Error(t, c.PressKey(ctx, "hyper"))
}

func TestClickObject(t *testing.T) {
	c, drv, _ := newTestController(t)

	objs := []detection.DetectedObject{
		detection.NewObject(detection.Box{X1: 100, Y1: 80, X2: 540, Y2: 120}, 2, "Search box", 0.9),
	}
	a := understanding.New(nil, objs, screen.Size{W: 640, H: 640})

	p, err := c.ClickObject(context.Background(), a, "search")
	require.NoError(t, err)
	assert.Equal(t, screen.Point{X: 960, Y: 169}, p)
	assert.Len(t, drv.Events(), 1)

	_, err = c.ClickObject(context.Background(), a, "play button")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = c.ClickObject(context.Background(), nil, "search")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCancelledContext(t *testing.T) {
	c, drv, _ := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.TypeText(ctx, "abc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "a", drv.Typed())
}

func TestGuard(t *testing.T) {
	g := DefaultGuard()

	blocked := []string{"sudo apt install", "rm -rf ~", "please SHUTDOWN now", "dd if=/dev/zero", "echo x > /dev/sda", "kill -9 1"}
	for _, s := range blocked {
		assert.ErrorIs(t, g.Check(s), ErrUnsafeInput, s)
	}

	allowed := []string{"I'm sure", "delicious cake", "information", "skill issue", "Hello Master"}
	for _, s := range allowed {
		assert.NoError(t, g.Check(s), s)
	}

	assert.ErrorIs(t, g.CheckName("../bin/sh"), ErrUnsafeInput)
	assert.ErrorIs(t, g.CheckName(`C:\evil`), ErrUnsafeInput)
	assert.NoError(t, g.CheckName("spotify"))

	var nilGuard *Guard
	assert.NoError(t, nilGuard.Check("sudo"))
}

func TestLauncher(t *testing.T) {
	type call struct {
		name string
		args []string
	}
	var calls []call
	l := NewLauncher(nil)
	l.goos = "linux"
	l.apps = DefaultApps["linux"]
	l.start = func(ctx context.Context, name string, args ...string) error {
		calls = append(calls, call{name, args})
		return nil
	}
	ctx := context.Background()

	require.NoError(t, l.OpenYouTube(ctx))
	require.NoError(t, l.SearchYouTube(ctx, "lofi hip hop"))
	require.NoError(t, l.OpenApp(ctx, "Spotify"))

	require.Len(t, calls, 3)
	assert.Equal(t, call{"xdg-open", []string{"https://www.youtube.com"}}, calls[0])
	assert.Equal(t, call{"xdg-open", []string{"https://www.youtube.com/results?search_query=lofi+hip+hop"}}, calls[1])
	assert.Equal(t, "spotify", calls[2].name)

	assert.ErrorIs(t, l.OpenApp(ctx, "minesweeper"), ErrUnknownApp)
	assert.ErrorIs(t, l.OpenApp(ctx, "../../bin/sh"), ErrUnsafeInput)
	assert.Contains(t, l.Apps(), "calculator")
}
