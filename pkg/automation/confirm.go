package automation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Confirmer approves or declines an action before it runs in safety mode.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AutoConfirm approves everything.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// AutoDecline declines everything.
var AutoDecline Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })

// StdinConfirmer asks on a terminal. Only "y" approves.
type StdinConfirmer struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewStdinConfirmer reads answers from in and writes prompts to out.
func NewStdinConfirmer(in io.Reader, out io.Writer) *StdinConfirmer {
	return &StdinConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm prints prompt and waits for an answer line.
func (c *StdinConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s\n   Proceed? (y/n): ", prompt)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return false, fmt.Errorf("read confirmation: %w", a.err)
		}
		return strings.ToLower(strings.TrimSpace(a.line)) == "y", nil
	}
}
