// Package profile persists reader profiles and imports them from YAML.
package profile

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/lepinkainen/bookhound/internal/books"
)

// AnonymousID is the id given to profiles built from request parameters alone.
const AnonymousID = "anonymous"

// Store defines the interface for profile persistence.
type Store interface {
	// Get returns the profile with id, or a ProfileNotFoundError
	Get(ctx context.Context, id string) (*books.Profile, error)

	// Save inserts or replaces a profile after validating it
	Save(ctx context.Context, p books.Profile) error

	// List returns all profiles ordered by id
	List(ctx context.Context) ([]books.Profile, error)

	// Delete removes a profile, returning a ProfileNotFoundError if it does not exist
	Delete(ctx context.Context, id string) error

	// Close releases the underlying connection
	Close() error
}

// Defaults fills in profile fields a user left unset.
type Defaults struct {
	PriceCeiling decimal.Decimal
	Formats      []books.Format
	Currency     string
}

// Anonymous returns a profile with no interests or exclusions and the
// default constraints.
func (d Defaults) Anonymous() books.Profile {
	return books.Profile{
		ID:              AnonymousID,
		Interests:       []string{},
		PreviouslyRead:  []string{},
		DislikedAuthors: []string{},
		PriceCeiling:    d.PriceCeiling,
		FormatsAccepted: slices.Clone(d.Formats),
		Currency:        d.Currency,
	}
}

func (d Defaults) apply(p *books.Profile, hasCeiling bool) {
	if !hasCeiling {
		p.PriceCeiling = d.PriceCeiling
	}
	if len(p.FormatsAccepted) == 0 {
		p.FormatsAccepted = slices.Clone(d.Formats)
	}
	if p.Currency == "" {
		p.Currency = d.Currency
	}
}
