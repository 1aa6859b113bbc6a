// Package books holds the data model shared by the availability pipeline:
// candidates, per-source availability records, results and reader profiles.
package books

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format is a physical or digital edition type.
type Format string

const (
	FormatEbook     Format = "ebook"
	FormatPaperback Format = "paperback"
	FormatHardcover Format = "hardcover"
	FormatAudiobook Format = "audiobook"
)

// AllFormats lists every known format in a stable order.
var AllFormats = []Format{FormatEbook, FormatPaperback, FormatHardcover, FormatAudiobook}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFormats {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// AvailabilityRecord is the result of one successful source lookup.
//
// A nil Price means the edition is free. It never means "unknown": a source
// that has nothing to offer returns no record at all.
type AvailabilityRecord struct {
	Source            string           `json:"source"`
	Format            Format           `json:"format"`
	Price             *decimal.Decimal `json:"price"`
	Currency          string           `json:"currency"`
	URL               string           `json:"url"`
	EstimatedDelivery string           `json:"estimated_delivery"`
	InStock           bool             `json:"in_stock"`
}

// IsFree reports whether the record carries no price.
func (r AvailabilityRecord) IsFree() bool {
	return r.Price == nil
}

// Candidate is a book suggested by the candidate generator, before any
// availability check. ISBN13 is always present and valid; ISBN10 may be empty.
type Candidate struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN13          string `json:"isbn_13"`
	ISBN10          string `json:"isbn_10,omitempty"`
	PublicationYear int    `json:"publication_year"`
	Reasoning       string `json:"reasoning"`
}

// BookResult is a candidate together with everything found for it.
// Build it with NewBookResult so MeetsCriteria and BestOption stay consistent.
type BookResult struct {
	Candidate     Candidate            `json:"candidate"`
	Availability  []AvailabilityRecord `json:"availability"`
	BestOption    *AvailabilityRecord  `json:"best_option"`
	MeetsCriteria bool                 `json:"meets_criteria"`
}

// Profile describes a reader's interests and purchase constraints.
type Profile struct {
	ID              string          `json:"id" validate:"required,max=128"`
	Interests       []string        `json:"interests" validate:"dive,required"`
	PreviouslyRead  []string        `json:"previously_read"`
	DislikedAuthors []string        `json:"disliked_authors"`
	PriceCeiling    decimal.Decimal `json:"price_ceiling"`
	FormatsAccepted []Format        `json:"formats_accepted" validate:"dive,oneof=ebook paperback hardcover audiobook"`
	Currency        string          `json:"currency" validate:"omitempty,len=3,uppercase"`
}
