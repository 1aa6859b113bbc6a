package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/source"
)

const (
	ISBNdbName              = "isbndb"
	isbndbBaseURL           = "https://api2.isbndb.com"
	isbndbRequestsPerMinute = 60
	isbndbDelivery          = "3-5 business days"
)

// ISBNdb reports list prices for print and digital editions.
type ISBNdb struct {
	*source.Base
	opts Options
}

// Compile-time check that ISBNdb implements source.Adapter.
var _ source.Adapter = (*ISBNdb)(nil)

// NewISBNdb creates an ISBNdb adapter. The API requires a key; callers
// should not register the adapter without one.
func NewISBNdb(opts ...Option) *ISBNdb {
	o := buildOptions(isbndbBaseURL, isbndbRequestsPerMinute, opts)
	return &ISBNdb{
		Base: source.NewBase(o.baseConfig(ISBNdbName, books.FormatPaperback, books.FormatHardcover, books.FormatEbook)),
		opts: o,
	}
}

// Check looks up the edition for isbn and reports its list price.
func (d *ISBNdb) Check(ctx context.Context, isbn string) (*books.AvailabilityRecord, error) {
	return d.Call(ctx, isbn, func(ctx context.Context) (*books.AvailabilityRecord, error) {
		return d.fetch(ctx, isbn)
	})
}

type isbndbResponse struct {
	Book struct {
		Title   string `json:"title"`
		ISBN13  string `json:"isbn13"`
		Binding string `json:"binding"`
		// MSRP arrives as either a JSON number or a string.
		MSRP any `json:"msrp"`
	} `json:"book"`
}

func (d *ISBNdb) fetch(ctx context.Context, isbn string) (*books.AvailabilityRecord, error) {
	endpoint := fmt.Sprintf("%s/book/%s", d.opts.BaseURL, isbn)
	header := http.Header{}
	header.Set("Authorization", d.opts.APIKey)

	var resp isbndbResponse
	if err := source.GetJSON(ctx, d.opts.HTTPClient, endpoint, header, &resp); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// A nil price means free, so a listing without a usable MSRP is not an offer.
	price := parseMSRP(resp.Book.MSRP)
	if price == nil {
		return nil, nil
	}

	return &books.AvailabilityRecord{
		Source:            ISBNdbName,
		Format:            bindingFormat(resp.Book.Binding),
		Price:             price,
		Currency:          d.opts.Currency,
		URL:               "https://isbndb.com/book/" + isbn,
		EstimatedDelivery: isbndbDelivery,
		InStock:           true,
	}, nil
}

// bindingFormat maps ISBNdb's free-text binding to a format.
func bindingFormat(binding string) books.Format {
	b := strings.ToLower(binding)
	switch {
	case strings.Contains(b, "hardcover"), strings.Contains(b, "hardback"), strings.Contains(b, "library binding"):
		return books.FormatHardcover
	case strings.Contains(b, "kindle"), strings.Contains(b, "ebook"), strings.Contains(b, "e-book"), strings.Contains(b, "digital"):
		return books.FormatEbook
	case strings.Contains(b, "audio"):
		return books.FormatAudiobook
	default:
		return books.FormatPaperback
	}
}

// parseMSRP returns nil when the price is missing or not positive.
func parseMSRP(v any) *decimal.Decimal {
	var (
		price decimal.Decimal
		err   error
	)
	switch m := v.(type) {
	case float64:
		price = decimal.NewFromFloat(m)
	case string:
		price, err = decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(m), "$"))
		if err != nil {
			return nil
		}
	default:
		return nil
	}
	if !price.IsPositive() {
		return nil
	}
	return &price
}
