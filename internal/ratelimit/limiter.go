// Package ratelimit throttles calls to a single external source with a
// counting window that resets wholesale once it has elapsed.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lepinkainen/bookhound/internal/metrics"
)

// DefaultWindow is the window length for per-minute limits.
const DefaultWindow = time.Minute

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Limiter allows at most limit calls to begin per window. Callers over the
// limit are suspended until the window resets; no call is ever dropped.
// A limit of zero or less disables limiting.
type Limiter struct {
	name   string
	limit  int
	window time.Duration

	mu          sync.Mutex
	windowStart time.Time
	count       int

	now    func() time.Time
	sleep  SleepFunc
	notice *rate.Sometimes
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleep replaces the function used to wait for the window to reset.
func WithSleep(sleep SleepFunc) Option {
	return func(l *Limiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// WithWindow overrides the window length.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// New creates a limiter allowing requestsPerMinute calls per window.
func New(name string, requestsPerMinute int, opts ...Option) *Limiter {
	l := &Limiter{
		name:   name,
		limit:  requestsPerMinute,
		window: DefaultWindow,
		now:    time.Now,
		sleep:  SleepContext,
		notice: &rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the current window has room for one more call.
// Returns an error if the context is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}

		metrics.RateLimitWaits.WithLabelValues(l.name).Inc()
		l.notice.Do(func() {
			slog.Info("Rate limit reached, waiting for window reset", "source", l.name, "limit", l.limit, "wait", wait)
		})

		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
		}
	}
}

// Allow reports whether a call can proceed without blocking and, if so,
// counts it against the current window.
func (l *Limiter) Allow() bool {
	_, ok := l.reserve()
	return ok
}

// reserve counts a call if the window has room. Otherwise it returns the
// time remaining until the window resets.
func (l *Limiter) reserve() (time.Duration, bool) {
	if l.limit <= 0 {
		return 0, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}

	if l.count < l.limit {
		l.count++
		return 0, true
	}

	return l.window - now.Sub(l.windowStart), false
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}

// Limit returns the number of calls allowed per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
