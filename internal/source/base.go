package source

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/metrics"
	"github.com/lepinkainen/bookhound/internal/ratelimit"
	"github.com/lepinkainen/bookhound/internal/retry"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = time.Minute
)

// FetchFunc performs one attempt at looking up an ISBN.
type FetchFunc func(ctx context.Context) (*books.AvailabilityRecord, error)

// BaseConfig configures the behaviour shared by all adapters.
type BaseConfig struct {
	Name              string
	RequestsPerMinute int
	Formats           []books.Format
	Retry             retry.Policy
	LimiterOptions    []ratelimit.Option
	// BreakerFailures is the number of consecutive failed checks that opens
	// the circuit. Zero selects the default; a negative value disables it.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Base carries the rate limiter, retry policy and circuit breaker an
// adapter composes. Concrete adapters embed *Base and implement Check by
// passing their fetch function to Call.
type Base struct {
	name      string
	rateLimit RateLimit
	formats   []books.Format
	limiter   *ratelimit.Limiter
	retry     retry.Policy
	breaker   *gobreaker.CircuitBreaker[*books.AvailabilityRecord]
}

// NewBase builds the shared adapter behaviour from cfg.
func NewBase(cfg BaseConfig) *Base {
	b := &Base{
		name:      cfg.Name,
		rateLimit: RateLimit{RequestsPerMinute: cfg.RequestsPerMinute},
		formats:   slices.Clone(cfg.Formats),
		limiter:   ratelimit.New(cfg.Name, cfg.RequestsPerMinute, cfg.LimiterOptions...),
		retry:     cfg.Retry,
	}

	if cfg.BreakerFailures >= 0 {
		b.breaker = newBreaker(cfg)
	}
	return b
}

func newBreaker(cfg BaseConfig) *gobreaker.CircuitBreaker[*books.AvailabilityRecord] {
	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return gobreaker.NewCircuitBreaker[*books.AvailabilityRecord](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Source circuit breaker state change", "source", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// Name returns the adapter name.
func (b *Base) Name() string {
	return b.name
}

// RateLimit returns the adapter's request budget.
func (b *Base) RateLimit() RateLimit {
	return b.rateLimit
}

// SupportsFormat reports whether format is one the adapter was configured with.
func (b *Base) SupportsFormat(format books.Format) bool {
	return slices.Contains(b.formats, format)
}

// Formats returns the formats the adapter can offer.
func (b *Base) Formats() []books.Format {
	return slices.Clone(b.formats)
}

// Call runs fetch under the retry policy. Every attempt waits for the rate
// limiter, so retries count against the window. The breaker wraps the
// retried call so one check counts once towards it.
func (b *Base) Call(ctx context.Context, isbn string, fetch FetchFunc) (*books.AvailabilityRecord, error) {
	start := time.Now()

	record, err := b.call(ctx, fetch)

	outcome := metrics.OutcomeFound
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case record == nil:
		outcome = metrics.OutcomeNotFound
	}
	metrics.RecordSourceCheck(b.name, outcome, time.Since(start))

	if err != nil {
		slog.Debug("Source check failed", "source", b.name, "isbn", isbn, "error", err)
		return nil, err
	}
	return record, nil
}

func (b *Base) call(ctx context.Context, fetch FetchFunc) (*books.AvailabilityRecord, error) {
	limited := func(ctx context.Context) (*books.AvailabilityRecord, error) {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}
		return fetch(ctx)
	}

	retried := func() (*books.AvailabilityRecord, error) {
		return retry.Do(ctx, b.retry, limited)
	}

	if b.breaker == nil {
		return retried()
	}
	return b.breaker.Execute(retried)
}
