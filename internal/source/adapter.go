// Package source defines the contract every external availability source
// implements, the registry that holds one instance per source, and the
// shared throttling, retry and circuit-breaking behaviour adapters compose.
package source

import (
	"context"

	"github.com/lepinkainen/bookhound/internal/books"
)

// RateLimit describes how many calls an adapter may start per minute.
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

// Adapter is an integration with one external availability source.
type Adapter interface {
	// Name returns the unique, stable identifier of the source (e.g. "googlebooks").
	Name() string

	// RateLimit returns the adapter's request budget.
	RateLimit() RateLimit

	// SupportsFormat reports whether the source can ever offer the format.
	SupportsFormat(format books.Format) bool

	// Check looks up an ISBN-13.
	// Returns nil, nil when the source has nothing available for the ISBN.
	// Returns nil, error for transport or parse failures that survived retries.
	Check(ctx context.Context, isbn string) (*books.AvailabilityRecord, error)
}
