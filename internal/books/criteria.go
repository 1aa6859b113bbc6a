package books

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Criteria decides which availability records are acceptable to a reader.
// A nil PriceCeiling accepts any price.
type Criteria struct {
	Formats      []Format
	PriceCeiling *decimal.Decimal
}

// Accepts reports whether r is a valid option: in stock, in an accepted
// format and free or priced at or below the ceiling.
func (c Criteria) Accepts(r AvailabilityRecord) bool {
	if !r.InStock {
		return false
	}
	if !slices.Contains(c.Formats, r.Format) {
		return false
	}
	if r.Price == nil || c.PriceCeiling == nil {
		return true
	}
	return r.Price.LessThanOrEqual(*c.PriceCeiling)
}

// ValidOptions returns the accepted records sorted by ascending price,
// free records first. The sort is stable so equal prices keep source order.
func (c Criteria) ValidOptions(records []AvailabilityRecord) []AvailabilityRecord {
	var valid []AvailabilityRecord
	for _, r := range records {
		if c.Accepts(r) {
			valid = append(valid, r)
		}
	}
	slices.SortStableFunc(valid, func(a, b AvailabilityRecord) int {
		return ComparePrice(a.Price, b.Price)
	})
	return valid
}

// ComparePrice orders prices ascending with nil (free) before every paid price.
func ComparePrice(a, b *decimal.Decimal) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Cmp(*b)
	}
}

// NewBookResult evaluates records against the criteria. BestOption is the
// cheapest valid option and MeetsCriteria is true exactly when it exists.
func NewBookResult(candidate Candidate, records []AvailabilityRecord, c Criteria) BookResult {
	if records == nil {
		records = []AvailabilityRecord{}
	}
	result := BookResult{
		Candidate:    candidate,
		Availability: records,
	}
	if valid := c.ValidOptions(records); len(valid) > 0 {
		best := valid[0]
		result.BestOption = &best
		result.MeetsCriteria = true
	}
	return result
}

// SortByBestPrice orders results by their best option's price, free first.
// Results without a best option sort last.
func SortByBestPrice(results []BookResult) {
	slices.SortStableFunc(results, func(a, b BookResult) int {
		switch {
		case a.BestOption == nil && b.BestOption == nil:
			return 0
		case a.BestOption == nil:
			return 1
		case b.BestOption == nil:
			return -1
		}
		return ComparePrice(a.BestOption.Price, b.BestOption.Price)
	})
}
