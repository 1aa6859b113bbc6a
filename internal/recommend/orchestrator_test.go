package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/cache"
	bherrors "github.com/lepinkainen/bookhound/internal/errors"
	"github.com/lepinkainen/bookhound/internal/profile"
	"github.com/lepinkainen/bookhound/internal/source"
)

const (
	isbnDune        = "9780441172719"
	isbnDune10      = "0441172717"
	isbnHyperion    = "9780553283686"
	isbnLeftHand    = "9780441478125"
	isbnNeuromancer = "9780441569595"
	isbnFoundation  = "9780553293357"
)

var (
	dune        = books.Candidate{Title: "Dune", Author: "Frank Herbert", ISBN13: isbnDune, ISBN10: isbnDune10}
	hyperion    = books.Candidate{Title: "Hyperion", Author: "Dan Simmons", ISBN13: isbnHyperion}
	leftHand    = books.Candidate{Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin", ISBN13: isbnLeftHand}
	neuromancer = books.Candidate{Title: "Neuromancer", Author: "William Gibson", ISBN13: isbnNeuromancer}
	foundation  = books.Candidate{Title: "Foundation", Author: "Isaac Asimov", ISBN13: isbnFoundation}
)

// fakeAdapter answers from a fixed table and counts calls per ISBN.
type fakeAdapter struct {
	name    string
	formats []books.Format
	records map[string]*books.AvailabilityRecord
	err     error

	mu    sync.Mutex
	calls map[string]int
}

var _ source.Adapter = (*fakeAdapter)(nil)

func newFakeAdapter(name string, formats ...books.Format) *fakeAdapter {
	return &fakeAdapter{
		name:    name,
		formats: formats,
		records: map[string]*books.AvailabilityRecord{},
		calls:   map[string]int{},
	}
}

func (f *fakeAdapter) offer(isbn string, format books.Format, price string, inStock bool) *fakeAdapter {
	r := &books.AvailabilityRecord{Source: f.name, Format: format, Currency: "USD", InStock: inStock, URL: "https://example.com/" + isbn}
	if price != "" {
		p := decimal.RequireFromString(price)
		r.Price = &p
	}
	f.records[isbn] = r
	return f
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) RateLimit() source.RateLimit { return source.RateLimit{RequestsPerMinute: 60} }

func (f *fakeAdapter) SupportsFormat(format books.Format) bool {
	for _, s := range f.formats {
		if s == format {
			return true
		}
	}
	return false
}

func (f *fakeAdapter) Check(_ context.Context, isbn string) (*books.AvailabilityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[isbn]++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[isbn], nil
}

func (f *fakeAdapter) Calls(isbn string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[isbn]
}

type fakeGenerator struct {
	candidates []books.Candidate
	err        error

	received books.Profile
	count    int
}

func (g *fakeGenerator) Generate(_ context.Context, p books.Profile, count int) ([]books.Candidate, error) {
	g.received = p
	g.count = count
	return g.candidates, g.err
}

type fakeProfiles map[string]books.Profile

func (f fakeProfiles) Get(_ context.Context, id string) (*books.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, bherrors.NewProfileNotFoundError(id)
	}
	return &p, nil
}

type harness struct {
	orch      *Orchestrator
	cache     *cache.Cache
	generator *fakeGenerator
}

func newHarness(t *testing.T, cfg Config, gen *fakeGenerator, adapters ...source.Adapter) harness {
	t.Helper()

	reg := source.NewRegistry()
	var names []string
	for _, a := range adapters {
		require.NoError(t, reg.Register(a))
		names = append(names, a.Name())
	}
	if cfg.EnabledSources == nil {
		cfg.EnabledSources = names
	}

	c := cache.New(time.Hour)
	profiles := fakeProfiles{"alice": testProfile("alice", "15", books.FormatPaperback)}
	return harness{
		orch:      New(cfg, reg, c, gen, profiles),
		cache:     c,
		generator: gen,
	}
}

func testProfile(id, ceiling string, formats ...books.Format) books.Profile {
	return books.Profile{
		ID:              id,
		Interests:       []string{"science fiction"},
		PreviouslyRead:  []string{},
		DislikedAuthors: []string{},
		PriceCeiling:    decimal.RequireFromString(ceiling),
		FormatsAccepted: formats,
	}
}

func titles(results []books.BookResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Candidate.Title
	}
	return out
}

func TestRecommendFormatAndPriceMismatch(t *testing.T) {
	a := newFakeAdapter("A", books.FormatEbook).offer(isbnDune, books.FormatEbook, "", true)
	b := newFakeAdapter("B", books.FormatPaperback).offer(isbnDune, books.FormatPaperback, "18", true)
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{dune}}, a, b)

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "15", books.FormatPaperback), Options{})
	require.NoError(t, err)

	assert.Empty(t, resp.Recommendations)
	assert.Equal(t, 1, resp.FilteredCount)
	assert.Equal(t, 1, resp.TotalCandidates)
	assert.Equal(t, 0, a.Calls(isbnDune), "ebook-only source is not consulted for a paperback profile")
	assert.Equal(t, 1, b.Calls(isbnDune))
}

func TestRecommendFreeSortsFirst(t *testing.T) {
	a := newFakeAdapter("A", books.FormatEbook).
		offer(isbnDune, books.FormatEbook, "9.99", true).
		offer(isbnHyperion, books.FormatEbook, "", true)
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{dune, hyperion}}, a)

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{})
	require.NoError(t, err)

	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, []string{"Hyperion", "Dune"}, titles(resp.Recommendations))
	assert.Nil(t, resp.Recommendations[0].BestOption.Price)
	assert.True(t, resp.Recommendations[0].MeetsCriteria)
	assert.Equal(t, "9.99", resp.Recommendations[1].BestOption.Price.String())
}

func TestRecommendBestOptionIsCheapestValid(t *testing.T) {
	a := newFakeAdapter("A", books.FormatPaperback).offer(isbnDune, books.FormatPaperback, "12", true)
	b := newFakeAdapter("B", books.FormatPaperback).offer(isbnDune, books.FormatPaperback, "8", false)
	c := newFakeAdapter("C", books.FormatPaperback).offer(isbnDune, books.FormatPaperback, "10", true)
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{dune}}, a, b, c)

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "15", books.FormatPaperback), Options{})
	require.NoError(t, err)

	require.Len(t, resp.Recommendations, 1)
	result := resp.Recommendations[0]
	assert.Len(t, result.Availability, 3)
	assert.Equal(t, "C", result.BestOption.Source)
}

func TestRecommendExclusions(t *testing.T) {
	a := newFakeAdapter("A", books.FormatEbook).
		offer(isbnDune, books.FormatEbook, "", true).
		offer(isbnHyperion, books.FormatEbook, "", true).
		offer(isbnLeftHand, books.FormatEbook, "", true).
		offer(isbnNeuromancer, books.FormatEbook, "", true)

	leGuinVariant := leftHand
	leGuinVariant.Author = "  URSULA K. LE GUIN "
	gen := &fakeGenerator{candidates: []books.Candidate{dune, hyperion, leGuinVariant, neuromancer}}
	h := newHarness(t, Config{}, gen, a)

	p := testProfile("p", "20", books.FormatEbook)
	p.PreviouslyRead = []string{"0-441-17271-7", "978 0553 283686"}
	p.DislikedAuthors = []string{"ursula k. le guin"}

	resp, err := h.orch.Recommend(context.Background(), p, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Neuromancer"}, titles(resp.Recommendations))
	assert.Equal(t, 4, resp.TotalCandidates)
	assert.Equal(t, 2, resp.ExcludedRead)
	assert.Equal(t, 1, resp.ExcludedAuthors)
	assert.Equal(t, 0, resp.FilteredCount)
	assert.Equal(t, 0, a.Calls(isbnDune), "excluded candidates are never checked")
	assert.Equal(t, 0, a.Calls(isbnLeftHand))
}

func TestRecommendFailingSourceIsSkippedAndNotCached(t *testing.T) {
	broken := newFakeAdapter("broken", books.FormatEbook)
	broken.err = errors.New("connection reset")
	good := newFakeAdapter("good", books.FormatEbook).offer(isbnDune, books.FormatEbook, "5", true)
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{dune}}, broken, good)
	p := testProfile("p", "20", books.FormatEbook)

	resp, err := h.orch.Recommend(context.Background(), p, Options{})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)
	assert.Len(t, resp.Recommendations[0].Availability, 1)
	assert.Equal(t, "good", resp.Recommendations[0].BestOption.Source)

	_, cached := h.cache.Get(isbnDune, "broken")
	assert.False(t, cached, "failures must not be cached")

	_, err = h.orch.Recommend(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, broken.Calls(isbnDune))
	assert.Equal(t, 1, good.Calls(isbnDune))
}

func TestRecommendAllSourcesFailing(t *testing.T) {
	broken := newFakeAdapter("broken", books.FormatEbook)
	broken.err = errors.New("timeout")
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{dune}}, broken)

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Recommendations)
	assert.Equal(t, 1, resp.FilteredCount)
}

func TestRecommendUsesCacheIncludingNegatives(t *testing.T) {
	a := newFakeAdapter("A", books.FormatEbook).offer(isbnDune, books.FormatEbook, "3", true)
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{dune, hyperion}}, a)
	p := testProfile("p", "20", books.FormatEbook)

	for range 3 {
		_, err := h.orch.Recommend(context.Background(), p, Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, a.Calls(isbnDune))
	assert.Equal(t, 1, a.Calls(isbnHyperion), "not-found result is cached")

	record, ok := h.cache.Get(isbnHyperion, "A")
	assert.True(t, ok)
	assert.Nil(t, record)

	_, err := h.orch.Recommend(context.Background(), p, Options{SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Calls(isbnDune))
	assert.Equal(t, 2, a.Calls(isbnHyperion))
}

func TestRecommendTruncatesToMaxResults(t *testing.T) {
	a := newFakeAdapter("A", books.FormatEbook).
		offer(isbnDune, books.FormatEbook, "4", true).
		offer(isbnHyperion, books.FormatEbook, "1", true).
		offer(isbnLeftHand, books.FormatEbook, "3", true).
		offer(isbnNeuromancer, books.FormatEbook, "2", true)
	gen := &fakeGenerator{candidates: []books.Candidate{dune, hyperion, leftHand, neuromancer}}
	h := newHarness(t, Config{MaxResults: 2, CandidateCount: 7}, gen, a)

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hyperion", "Neuromancer"}, titles(resp.Recommendations))
	assert.Equal(t, 0, resp.FilteredCount, "truncated results are not counted as filtered")
	assert.Equal(t, 7, gen.count)
}

func TestRecommendOverridesDoNotMutateProfile(t *testing.T) {
	a := newFakeAdapter("A", books.FormatHardcover).offer(isbnDune, books.FormatHardcover, "30", true)
	gen := &fakeGenerator{candidates: []books.Candidate{dune}}
	h := newHarness(t, Config{}, gen, a)

	p := testProfile("p", "15", books.FormatPaperback)
	ceiling := decimal.NewFromInt(40)
	opts := Options{
		OverrideInterests:    []string{"desert ecology"},
		OverridePriceCeiling: &ceiling,
		OverrideFormats:      []books.Format{books.FormatHardcover},
	}

	resp, err := h.orch.Recommend(context.Background(), p, opts)
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)

	assert.Equal(t, []string{"desert ecology"}, gen.received.Interests)
	assert.True(t, gen.received.PriceCeiling.Equal(ceiling))
	assert.Equal(t, []books.Format{books.FormatHardcover}, gen.received.FormatsAccepted)

	assert.Equal(t, []string{"science fiction"}, p.Interests)
	assert.True(t, p.PriceCeiling.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, []books.Format{books.FormatPaperback}, p.FormatsAccepted)
}

func TestRecommendSkipsUnregisteredAndDisabledSources(t *testing.T) {
	enabled := newFakeAdapter("enabled", books.FormatEbook).offer(isbnDune, books.FormatEbook, "", true)
	disabled := newFakeAdapter("disabled", books.FormatEbook).offer(isbnDune, books.FormatEbook, "", true)
	cfg := Config{EnabledSources: []string{"missing", "enabled"}}
	h := newHarness(t, cfg, &fakeGenerator{candidates: []books.Candidate{dune}}, enabled, disabled)

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, 1, enabled.Calls(isbnDune))
	assert.Equal(t, 0, disabled.Calls(isbnDune))
}

func TestRecommendGeneratorFailurePropagates(t *testing.T) {
	upstream := errors.New("model unavailable")
	h := newHarness(t, Config{}, &fakeGenerator{err: upstream})

	_, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{})
	assert.ErrorIs(t, err, upstream)
}

func TestRecommendRejectsInvalidOverrides(t *testing.T) {
	gen := &fakeGenerator{}
	h := newHarness(t, Config{}, gen)
	negative := decimal.NewFromInt(-1)

	_, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{OverridePriceCeiling: &negative})
	require.Error(t, err)
	assert.True(t, bherrors.IsValidationError(err))
	assert.Zero(t, gen.count, "generator is not called for invalid input")
}

func TestRecommendEmptyResultIsNotAnError(t *testing.T) {
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{}})

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{})
	require.NoError(t, err)
	assert.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
	assert.Zero(t, resp.TotalCandidates)
}

func TestRecommendAnonymousDefaults(t *testing.T) {
	a := newFakeAdapter("A", books.FormatEbook).offer(isbnDune, books.FormatEbook, "", true)
	defaults := profile.Defaults{PriceCeiling: decimal.NewFromInt(20), Formats: []books.Format{books.FormatEbook}, Currency: "USD"}
	gen := &fakeGenerator{candidates: []books.Candidate{dune}}
	h := newHarness(t, Config{Defaults: defaults}, gen, a)

	resp, err := h.orch.Recommend(context.Background(), h.orch.Defaults().Anonymous(), Options{OverrideInterests: []string{"sand"}})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, profile.AnonymousID, gen.received.ID)
}

func TestRecommendProfile(t *testing.T) {
	a := newFakeAdapter("A", books.FormatPaperback).offer(isbnDune, books.FormatPaperback, "14.99", true)
	h := newHarness(t, Config{}, &fakeGenerator{candidates: []books.Candidate{dune}}, a)

	resp, err := h.orch.RecommendProfile(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, "alice", h.generator.received.ID)

	_, err = h.orch.RecommendProfile(context.Background(), "nobody", Options{})
	assert.True(t, bherrors.IsProfileNotFoundError(err))
}

func TestRecommendParallelSourcesKeepsOrder(t *testing.T) {
	var adapters []source.Adapter
	for _, name := range []string{"s1", "s2", "s3", "s4"} {
		adapters = append(adapters, newFakeAdapter(name, books.FormatEbook).offer(isbnFoundation, books.FormatEbook, "7", true))
	}
	h := newHarness(t, Config{ParallelSources: true}, &fakeGenerator{candidates: []books.Candidate{foundation}}, adapters...)

	resp, err := h.orch.Recommend(context.Background(), testProfile("p", "20", books.FormatEbook), Options{})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)

	var sources []string
	for _, r := range resp.Recommendations[0].Availability {
		sources = append(sources, r.Source)
	}
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, sources)
	assert.Equal(t, "s1", resp.Recommendations[0].BestOption.Source)
}

func TestCheckISBN(t *testing.T) {
	ebook := newFakeAdapter("ebooks", books.FormatEbook).offer(isbnDune, books.FormatEbook, "6.99", true)
	printed := newFakeAdapter("print", books.FormatPaperback, books.FormatHardcover).offer(isbnDune, books.FormatPaperback, "4.99", true)
	h := newHarness(t, Config{}, &fakeGenerator{}, ebook, printed)

	res, err := h.orch.CheckISBN(context.Background(), "0-441-17271-7", CheckOptions{})
	require.NoError(t, err)
	assert.Equal(t, isbnDune, res.ISBN13)
	assert.Equal(t, isbnDune10, res.ISBN10)
	assert.Len(t, res.Availability, 2)
	require.NotNil(t, res.BestOption)
	assert.Equal(t, "print", res.BestOption.Source)

	res, err = h.orch.CheckISBN(context.Background(), isbnDune, CheckOptions{Formats: []books.Format{books.FormatEbook}})
	require.NoError(t, err)
	assert.Len(t, res.Availability, 1)
	assert.Equal(t, "ebooks", res.BestOption.Source)
	assert.Equal(t, 1, ebook.Calls(isbnDune), "second check is served from cache")

	ceiling := decimal.NewFromInt(3)
	res, err = h.orch.CheckISBN(context.Background(), isbnDune, CheckOptions{PriceCeiling: &ceiling})
	require.NoError(t, err)
	assert.Len(t, res.Availability, 2)
	assert.Nil(t, res.BestOption)
}

func TestCheckISBNRejectsInvalid(t *testing.T) {
	a := newFakeAdapter("A", books.FormatEbook)
	h := newHarness(t, Config{}, &fakeGenerator{}, a)

	for _, raw := range []string{"", "123", "9780441172710", "044117271X"} {
		_, err := h.orch.CheckISBN(context.Background(), raw, CheckOptions{})
		require.Error(t, err, raw)
		assert.True(t, bherrors.IsValidationError(err), raw)
	}
	assert.Empty(t, a.calls, "no source is consulted for an invalid ISBN")
}
