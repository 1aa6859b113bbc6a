// Package recommend turns a reader profile into a ranked list of books that
// can actually be obtained within the reader's price and format constraints.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/cache"
	"github.com/lepinkainen/bookhound/internal/candidates"
	bherrors "github.com/lepinkainen/bookhound/internal/errors"
	"github.com/lepinkainen/bookhound/internal/isbn"
	"github.com/lepinkainen/bookhound/internal/profile"
	"github.com/lepinkainen/bookhound/internal/source"
)

const (
	DefaultCandidateCount = 10
	DefaultMaxResults     = 5
)

// Config controls the size of each run and which sources it consults.
type Config struct {
	CandidateCount int
	MaxResults     int
	// EnabledSources lists adapter names in the order they are checked.
	EnabledSources []string
	CacheTTL       time.Duration
	// ParallelSources checks a candidate's sources concurrently.
	ParallelSources bool
	Defaults        profile.Defaults
}

// Options are per-request overrides layered onto the stored profile.
type Options struct {
	OverrideInterests    []string
	OverridePriceCeiling *decimal.Decimal
	OverrideFormats      []books.Format
	SkipCache            bool
}

// Response is the outcome of one recommendation run.
type Response struct {
	Recommendations []books.BookResult `json:"recommendations"`
	// FilteredCount is the number of checked candidates with no valid option.
	FilteredCount   int `json:"filtered_count"`
	TotalCandidates int `json:"total_candidates"`
	ExcludedRead    int `json:"excluded_read"`
	ExcludedAuthors int `json:"excluded_authors"`
}

// ProfileGetter loads stored profiles.
type ProfileGetter interface {
	Get(ctx context.Context, id string) (*books.Profile, error)
}

// SourceLookup resolves adapter names.
type SourceLookup interface {
	Get(name string) (source.Adapter, bool)
}

// Orchestrator runs the candidate, exclusion, availability and ranking pipeline.
type Orchestrator struct {
	cfg       Config
	sources   SourceLookup
	cache     *cache.Cache
	generator candidates.Generator
	profiles  ProfileGetter
}

// New creates an Orchestrator. profiles may be nil when only anonymous
// recommendations and ISBN checks are needed.
func New(cfg Config, sources SourceLookup, c *cache.Cache, generator candidates.Generator, profiles ProfileGetter) *Orchestrator {
	if cfg.CandidateCount <= 0 {
		cfg.CandidateCount = DefaultCandidateCount
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = c.DefaultTTL()
	}
	return &Orchestrator{
		cfg:       cfg,
		sources:   sources,
		cache:     c,
		generator: generator,
		profiles:  profiles,
	}
}

// Defaults returns the profile defaults used for anonymous requests.
func (o *Orchestrator) Defaults() profile.Defaults {
	return o.cfg.Defaults
}

// RecommendProfile loads the stored profile id and recommends for it.
func (o *Orchestrator) RecommendProfile(ctx context.Context, id string, opts Options) (*Response, error) {
	if o.profiles == nil {
		return nil, fmt.Errorf("no profile store configured")
	}
	p, err := o.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, bherrors.NewProfileNotFoundError(id)
	}
	return o.Recommend(ctx, *p, opts)
}

// Recommend runs the pipeline for p. p itself is not modified.
func (o *Orchestrator) Recommend(ctx context.Context, p books.Profile, opts Options) (*Response, error) {
	effective := effectiveProfile(p, opts)
	if err := books.ValidateProfile(effective); err != nil {
		return nil, err
	}

	found, err := o.generator.Generate(ctx, effective, o.cfg.CandidateCount)
	if err != nil {
		return nil, fmt.Errorf("candidate generation failed: %w", err)
	}

	resp := &Response{
		Recommendations: []books.BookResult{},
		TotalCandidates: len(found),
	}

	read := normalizedSet(effective.PreviouslyRead, normalizeISBN)
	disliked := normalizedSet(effective.DislikedAuthors, normalizeAuthor)

	var remaining []books.Candidate
	for _, c := range found {
		switch {
		case read[normalizeISBN(c.ISBN13)] || (c.ISBN10 != "" && read[normalizeISBN(c.ISBN10)]):
			resp.ExcludedRead++
		case disliked[normalizeAuthor(c.Author)]:
			resp.ExcludedAuthors++
		default:
			remaining = append(remaining, c)
		}
	}

	criteria := books.Criteria{
		Formats:      effective.FormatsAccepted,
		PriceCeiling: &effective.PriceCeiling,
	}
	adapters := o.adaptersFor(effective.FormatsAccepted)

	for _, c := range remaining {
		records := o.resolveAll(ctx, c.ISBN13, adapters, opts.SkipCache)
		result := books.NewBookResult(c, records, criteria)
		if !result.MeetsCriteria {
			resp.FilteredCount++
			continue
		}
		resp.Recommendations = append(resp.Recommendations, result)
	}

	books.SortByBestPrice(resp.Recommendations)
	if len(resp.Recommendations) > o.cfg.MaxResults {
		resp.Recommendations = resp.Recommendations[:o.cfg.MaxResults]
	}

	slog.Info("Recommendation run complete",
		"profile", effective.ID,
		"candidates", resp.TotalCandidates,
		"excluded_read", resp.ExcludedRead,
		"excluded_authors", resp.ExcludedAuthors,
		"filtered", resp.FilteredCount,
		"returned", len(resp.Recommendations),
	)
	return resp, nil
}

// CheckOptions narrows a single-ISBN check. Empty Formats means all formats
// and a nil PriceCeiling accepts any price.
type CheckOptions struct {
	Formats      []books.Format
	PriceCeiling *decimal.Decimal
	SkipCache    bool
}

// CheckResult is the availability of one ISBN across the enabled sources.
type CheckResult struct {
	ISBN13       string                     `json:"isbn_13"`
	ISBN10       string                     `json:"isbn_10,omitempty"`
	Availability []books.AvailabilityRecord `json:"availability"`
	BestOption   *books.AvailabilityRecord  `json:"best_option"`
}

// CheckISBN looks up one ISBN, independent of any profile.
func (o *Orchestrator) CheckISBN(ctx context.Context, raw string, opts CheckOptions) (*CheckResult, error) {
	res := isbn.Validate(raw)
	if !res.Valid {
		return nil, bherrors.NewValidationError("isbn", res.Error)
	}
	if opts.PriceCeiling != nil && opts.PriceCeiling.IsNegative() {
		return nil, bherrors.NewValidationError("price_ceiling", "must not be negative")
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = books.AllFormats
	}

	records := o.resolveAll(ctx, res.ISBN13, o.adaptersFor(formats), opts.SkipCache)
	result := &CheckResult{
		ISBN13:       res.ISBN13,
		ISBN10:       res.ISBN10,
		Availability: records,
	}

	criteria := books.Criteria{Formats: formats, PriceCeiling: opts.PriceCeiling}
	if valid := criteria.ValidOptions(records); len(valid) > 0 {
		best := valid[0]
		result.BestOption = &best
	}
	return result, nil
}

// adaptersFor returns the enabled, registered adapters that offer at least
// one of formats, in enabled-sources order.
func (o *Orchestrator) adaptersFor(formats []books.Format) []source.Adapter {
	var adapters []source.Adapter
	for _, name := range o.cfg.EnabledSources {
		a, ok := o.sources.Get(name)
		if !ok {
			slog.Debug("Enabled source not registered", "source", name)
			continue
		}
		if slices.ContainsFunc(formats, a.SupportsFormat) {
			adapters = append(adapters, a)
		}
	}
	return adapters
}

func effectiveProfile(p books.Profile, opts Options) books.Profile {
	eff := p
	eff.Interests = slices.Clone(p.Interests)
	eff.PreviouslyRead = slices.Clone(p.PreviouslyRead)
	eff.DislikedAuthors = slices.Clone(p.DislikedAuthors)
	eff.FormatsAccepted = slices.Clone(p.FormatsAccepted)

	if eff.ID == "" {
		eff.ID = profile.AnonymousID
	}
	if len(opts.OverrideInterests) > 0 {
		eff.Interests = slices.Clone(opts.OverrideInterests)
	}
	if opts.OverridePriceCeiling != nil {
		eff.PriceCeiling = *opts.OverridePriceCeiling
	}
	if len(opts.OverrideFormats) > 0 {
		eff.FormatsAccepted = slices.Clone(opts.OverrideFormats)
	}
	return eff
}

func normalizeISBN(s string) string {
	return strings.ToUpper(isbn.Clean(strings.TrimSpace(s)))
}

func normalizeAuthor(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizedSet(values []string, normalize func(string) string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			set[n] = true
		}
	}
	return set
}
