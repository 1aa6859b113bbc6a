// Package adapters contains the concrete availability sources.
package adapters

import (
	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/ratelimit"
	"github.com/lepinkainen/bookhound/internal/retry"
	"github.com/lepinkainen/bookhound/internal/source"
)

const defaultCurrency = "USD"

// Options holds the settings shared by all adapter constructors.
type Options struct {
	HTTPClient        source.HTTPDoer
	BaseURL           string
	APIKey            string
	Country           string
	Currency          string
	RequestsPerMinute int
	Retry             retry.Policy
	LimiterOptions    []ratelimit.Option
	BreakerFailures   int
}

// Option is a functional option for configuring an adapter.
type Option func(*Options)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c source.HTTPDoer) Option {
	return func(o *Options) {
		if c != nil {
			o.HTTPClient = c
		}
	}
}

// WithBaseURL points the adapter at a different API root.
func WithBaseURL(base string) Option {
	return func(o *Options) {
		if base != "" {
			o.BaseURL = base
		}
	}
}

// WithAPIKey sets the API key sent to the source.
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// WithCountry sets the storefront country for sources that price per region.
func WithCountry(country string) Option {
	return func(o *Options) {
		if country != "" {
			o.Country = country
		}
	}
}

// WithCurrency sets the currency reported on records that carry no price.
func WithCurrency(currency string) Option {
	return func(o *Options) {
		if currency != "" {
			o.Currency = currency
		}
	}
}

// WithRequestsPerMinute overrides the adapter's default rate limit.
func WithRequestsPerMinute(rpm int) Option {
	return func(o *Options) {
		if rpm > 0 {
			o.RequestsPerMinute = rpm
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Options) {
		o.Retry = p
	}
}

// WithLimiterOptions passes options through to the adapter's rate limiter.
func WithLimiterOptions(opts ...ratelimit.Option) Option {
	return func(o *Options) {
		o.LimiterOptions = append(o.LimiterOptions, opts...)
	}
}

// WithBreakerFailures sets how many consecutive failures open the circuit.
// A negative value disables the breaker.
func WithBreakerFailures(n int) Option {
	return func(o *Options) {
		o.BreakerFailures = n
	}
}

func buildOptions(baseURL string, rpm int, opts []Option) Options {
	o := Options{
		HTTPClient:        source.NewHTTPClient(),
		BaseURL:           baseURL,
		Country:           "US",
		Currency:          defaultCurrency,
		RequestsPerMinute: rpm,
		Retry:             retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) baseConfig(name string, formats ...books.Format) source.BaseConfig {
	return source.BaseConfig{
		Name:              name,
		RequestsPerMinute: o.RequestsPerMinute,
		Formats:           formats,
		Retry:             o.Retry,
		LimiterOptions:    o.LimiterOptions,
		BreakerFailures:   o.BreakerFailures,
	}
}
