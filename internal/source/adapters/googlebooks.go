package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/source"
)

const (
	GoogleBooksName              = "googlebooks"
	googleBooksBaseURL           = "https://www.googleapis.com/books/v1"
	googleBooksRequestsPerMinute = 60
)

// GoogleBooks checks Google Play Books ebook sale status through the Google Books API.
type GoogleBooks struct {
	*source.Base
	opts Options
}

// Compile-time check that GoogleBooks implements source.Adapter.
var _ source.Adapter = (*GoogleBooks)(nil)

// NewGoogleBooks creates a Google Books adapter.
func NewGoogleBooks(opts ...Option) *GoogleBooks {
	o := buildOptions(googleBooksBaseURL, googleBooksRequestsPerMinute, opts)
	return &GoogleBooks{
		Base: source.NewBase(o.baseConfig(GoogleBooksName, books.FormatEbook)),
		opts: o,
	}
}

// Check looks up the ebook edition for isbn.
func (g *GoogleBooks) Check(ctx context.Context, isbn string) (*books.AvailabilityRecord, error) {
	return g.Call(ctx, isbn, func(ctx context.Context) (*books.AvailabilityRecord, error) {
		return g.fetch(ctx, isbn)
	})
}

type googleBooksPrice struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// googleBooksResponse matches the subset of the volumes API used here.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title    string `json:"title"`
			InfoLink string `json:"infoLink"`
		} `json:"volumeInfo"`
		SaleInfo struct {
			Country     string            `json:"country"`
			Saleability string            `json:"saleability"`
			IsEbook     bool              `json:"isEbook"`
			ListPrice   *googleBooksPrice `json:"listPrice"`
			RetailPrice *googleBooksPrice `json:"retailPrice"`
			BuyLink     string            `json:"buyLink"`
		} `json:"saleInfo"`
		AccessInfo struct {
			WebReaderLink string `json:"webReaderLink"`
		} `json:"accessInfo"`
	} `json:"items"`
}

func (g *GoogleBooks) fetch(ctx context.Context, isbn string) (*books.AvailabilityRecord, error) {
	query := url.Values{}
	query.Set("q", "isbn:"+isbn)
	query.Set("country", g.opts.Country)
	if g.opts.APIKey != "" {
		query.Set("key", g.opts.APIKey)
	}
	endpoint := fmt.Sprintf("%s/volumes?%s", g.opts.BaseURL, query.Encode())

	var resp googleBooksResponse
	if err := source.GetJSON(ctx, g.opts.HTTPClient, endpoint, nil, &resp); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if resp.TotalItems == 0 || len(resp.Items) == 0 {
		return nil, nil
	}

	for _, item := range resp.Items {
		sale := item.SaleInfo
		if !sale.IsEbook {
			continue
		}

		link := firstNonEmpty(sale.BuyLink, item.AccessInfo.WebReaderLink, item.VolumeInfo.InfoLink)
		record := &books.AvailabilityRecord{
			Source:            GoogleBooksName,
			Format:            books.FormatEbook,
			Currency:          g.opts.Currency,
			URL:               link,
			EstimatedDelivery: "instant",
			InStock:           true,
		}

		switch sale.Saleability {
		case "FREE":
			return record, nil
		case "FOR_SALE", "FOR_PREORDER":
			price := sale.RetailPrice
			if price == nil || !price.Amount.IsPositive() {
				price = sale.ListPrice
			}
			if price == nil || !price.Amount.IsPositive() {
				continue
			}
			amount := price.Amount
			record.Price = &amount
			if price.CurrencyCode != "" {
				record.Currency = price.CurrencyCode
			}
			if sale.Saleability == "FOR_PREORDER" {
				record.InStock = false
				record.EstimatedDelivery = "on release"
			}
			return record, nil
		}
	}

	return nil, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
