// Package ratelimit enforces the two-tier sliding-window cap the Riot API
// imposes on an API key: a short burst window and a longer sustained window.
// A single Limiter is meant to be shared by every caller holding the key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Default caps stay under the documented dev-key limits (20/s, 100/2min)
// the same way the collector always has.
const (
	DefaultShortCap  = 20
	DefaultShortSpan = 1 * time.Second
	DefaultLongCap   = 100
	DefaultLongSpan  = 120 * time.Second
)

// Clock abstracts time so the limiter can be driven by a synthetic clock in
// tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type window struct {
	cap   int
	span  time.Duration
	calls []time.Time
}

// prune drops calls that have slid out of the window.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

func (w *window) full() bool { return len(w.calls) >= w.cap }

// nextFree returns when the oldest call expires from the window.
func (w *window) nextFree() time.Time { return w.calls[0].Add(w.span) }

// Config sets the two window caps. Zero values fall back to the defaults.
type Config struct {
	ShortCap  int
	ShortSpan time.Duration
	LongCap   int
	LongSpan  time.Duration
	Clock     Clock
}

// Limiter is a two-window sliding-window rate limiter. Safe for concurrent
// use: acquisitions are serialized on an internal mutex and blocked callers
// re-check capacity after every wait.
type Limiter struct {
	mu    sync.Mutex
	clock Clock
	short window
	long  window
}

// New creates a limiter from cfg, applying defaults for zero fields.
func New(cfg Config) *Limiter {
	if cfg.ShortCap <= 0 {
		cfg.ShortCap = DefaultShortCap
	}
	if cfg.ShortSpan <= 0 {
		cfg.ShortSpan = DefaultShortSpan
	}
	if cfg.LongCap <= 0 {
		cfg.LongCap = DefaultLongCap
	}
	if cfg.LongSpan <= 0 {
		cfg.LongSpan = DefaultLongSpan
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	return &Limiter{
		clock: cfg.Clock,
		short: window{cap: cfg.ShortCap, span: cfg.ShortSpan},
		long:  window{cap: cfg.LongCap, span: cfg.LongSpan},
	}
}

// Acquire blocks until both windows have spare capacity, then records the
// call. It returns early with the context error if ctx is cancelled while
// waiting. After a successful return, neither window's call count exceeds
// its cap within any span-sized interval.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.short.prune(now)
		l.long.prune(now)

		if !l.short.full() && !l.long.full() {
			l.short.calls = append(l.short.calls, now)
			l.long.calls = append(l.long.calls, now)
			l.mu.Unlock()
			return nil
		}

		// Wait until whichever full window frees a slot last.
		var wakeAt time.Time
		if l.short.full() {
			wakeAt = l.short.nextFree()
		}
		if l.long.full() {
			if free := l.long.nextFree(); free.After(wakeAt) {
				wakeAt = free
			}
		}
		wait := wakeAt.Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			// Clock already moved past the wake point; re-check immediately.
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limit wait aborted: %w", ctx.Err())
		case <-l.clock.After(wait):
		}
	}
}
