package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed provider is moved to the back of
// the chain.
const DefaultCooldown = 30 * time.Second

// Chain implements Provider by trying providers in order, typically a
// remote voice first and local espeak as the fallback.
//
// A provider that fails is demoted for the cooldown period so a dead
// remote server does not add its timeout to every line the companion
// speaks. Demoted providers are still tried, after the healthy ones.
type Chain struct {
	mu       sync.Mutex
	links    []*link
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type link struct {
	provider  Provider
	failedAt  time.Time
	successes uint64
	failures  uint64
}

// LinkStats reports how one provider in a chain has fared.
type LinkStats struct {
	Index     int
	Successes uint64
	Failures  uint64
	Demoted   bool
}

// NewChain creates a provider chain. At least one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	links := make([]*link, len(providers))
	for i, p := range providers {
		links[i] = &link{provider: p}
	}
	return &Chain{
		links:    links,
		cooldown: DefaultCooldown,
		now:      time.Now,
		logger:   slog.Default().With("component", "tts.chain"),
	}, nil
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	chain, err := NewChain(providers...)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		chain.logger = logger.With("component", "tts.chain")
	}
	return chain, nil
}

// SetCooldown changes the demotion period. Zero disables demotion.
func (c *Chain) SetCooldown(d time.Duration) {
	c.mu.Lock()
	c.cooldown = d
	c.mu.Unlock()
}

// order returns link indexes with demoted providers moved last.
func (c *Chain) order() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var ready, demoted []int
	for i, l := range c.links {
		if c.demoted(l, now) {
			demoted = append(demoted, i)
		} else {
			ready = append(ready, i)
		}
	}
	return append(ready, demoted...)
}

func (c *Chain) demoted(l *link, now time.Time) bool {
	return c.cooldown > 0 && !l.failedAt.IsZero() && now.Sub(l.failedAt) < c.cooldown
}

func (c *Chain) record(i int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.links[i]
	if err != nil {
		l.failures++
		l.failedAt = c.now()
		return
	}
	l.successes++
	l.failedAt = time.Time{}
}

// Synthesize tries each provider until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	chainErr := &ChainError{}

	for attempt, i := range c.order() {
		result, err := c.links[i].provider.Synthesize(ctx, text)
		c.record(i, err)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("fallback voice used", "provider_index", i, "chars", len(text))
			}
			return result, nil
		}

		chainErr.add(i, err)
		c.logger.Warn("voice provider failed", "provider_index", i, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, chainErr
}

// Health succeeds when at least one provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	chainErr := &ChainError{}
	for i, l := range c.links {
		if err := l.provider.Health(ctx); err != nil {
			chainErr.add(i, err)
			continue
		}
		return nil
	}
	return chainErr
}

// Close closes every provider and returns the last error.
func (c *Chain) Close() error {
	var lastErr error
	for _, l := range c.links {
		if err := l.provider.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the providers in configured order.
func (c *Chain) Providers() []Provider {
	out := make([]Provider, len(c.links))
	for i, l := range c.links {
		out[i] = l.provider
	}
	return out
}

// Stats returns per-provider counters in configured order.
func (c *Chain) Stats() []LinkStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := make([]LinkStats, len(c.links))
	for i, l := range c.links {
		out[i] = LinkStats{
			Index:     i,
			Successes: l.successes,
			Failures:  l.failures,
			Demoted:   c.demoted(l, now),
		}
	}
	return out
}

// ChainError collects the failure of every provider tried.
type ChainError struct {
	Indexes []int
	Errors  []error
}

func (e *ChainError) add(i int, err error) {
	e.Indexes = append(e.Indexes, i)
	e.Errors = append(e.Errors, err)
}

// Error lists each provider's failure.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "tts chain: no providers tried"
	}
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = fmt.Sprintf("#%d: %v", e.Indexes[i], err)
	}
	return "tts chain: " + strings.Join(parts, "; ")
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

var _ Provider = (*Chain)(nil)
