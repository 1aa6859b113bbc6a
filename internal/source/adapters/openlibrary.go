package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/source"
)

const (
	OpenLibraryName              = "openlibrary"
	openLibraryBaseURL           = "https://openlibrary.org"
	openLibraryRequestsPerMinute = 100
)

// Open Library item statuses as returned by the read API.
const (
	olStatusFullAccess = "full access"
	olStatusLendable   = "lendable"
	olStatusCheckedOut = "checked out"
)

// OpenLibrary checks whether an ISBN can be read or borrowed from Open Library.
type OpenLibrary struct {
	*source.Base
	opts Options
}

// Compile-time check that OpenLibrary implements source.Adapter.
var _ source.Adapter = (*OpenLibrary)(nil)

// NewOpenLibrary creates an Open Library adapter.
func NewOpenLibrary(opts ...Option) *OpenLibrary {
	o := buildOptions(openLibraryBaseURL, openLibraryRequestsPerMinute, opts)
	return &OpenLibrary{
		Base: source.NewBase(o.baseConfig(OpenLibraryName, books.FormatEbook)),
		opts: o,
	}
}

// Check looks up borrowable or open-access copies of isbn.
func (l *OpenLibrary) Check(ctx context.Context, isbn string) (*books.AvailabilityRecord, error) {
	return l.Call(ctx, isbn, func(ctx context.Context) (*books.AvailabilityRecord, error) {
		return l.fetch(ctx, isbn)
	})
}

type openLibraryItem struct {
	Status  string `json:"status"`
	ItemURL string `json:"itemURL"`
	Match   string `json:"match"`
}

type openLibraryResponse struct {
	Items []openLibraryItem `json:"items"`
}

func (l *OpenLibrary) fetch(ctx context.Context, isbn string) (*books.AvailabilityRecord, error) {
	endpoint := fmt.Sprintf("%s/api/volumes/brief/isbn/%s.json", l.opts.BaseURL, isbn)

	// Unknown ISBNs come back as an empty JSON array instead of an object.
	var raw json.RawMessage
	if err := source.GetJSON(ctx, l.opts.HTTPClient, endpoint, nil, &raw); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '[' {
		return nil, nil
	}

	var resp openLibraryResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	item, ok := bestOpenLibraryItem(resp.Items)
	if !ok {
		return nil, nil
	}

	url := item.ItemURL
	if url == "" {
		url = fmt.Sprintf("%s/isbn/%s", l.opts.BaseURL, isbn)
	}

	record := &books.AvailabilityRecord{
		Source:            OpenLibraryName,
		Format:            books.FormatEbook,
		Currency:          l.opts.Currency,
		URL:               url,
		EstimatedDelivery: "instant",
		InStock:           true,
	}
	if item.Status == olStatusCheckedOut {
		record.InStock = false
		record.EstimatedDelivery = "waitlist"
	}
	return record, nil
}

// bestOpenLibraryItem prefers open access over lending over a waitlist.
// Restricted (print-disabled only) items are never offered.
func bestOpenLibraryItem(items []openLibraryItem) (openLibraryItem, bool) {
	rank := func(status string) int {
		switch status {
		case olStatusFullAccess:
			return 3
		case olStatusLendable:
			return 2
		case olStatusCheckedOut:
			return 1
		default:
			return 0
		}
	}

	var best openLibraryItem
	bestRank := 0
	for _, item := range items {
		r := rank(item.Status)
		if r > bestRank || (r == bestRank && r > 0 && item.Match == "exact" && best.Match != "exact") {
			best, bestRank = item, r
		}
	}
	return best, bestRank > 0
}
