package cmd

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/lepinkainen/bookhound/internal/books"
	bherrors "github.com/lepinkainen/bookhound/internal/errors"
	"github.com/lepinkainen/bookhound/internal/recommend"
)

// RecommendCmd represents the recommend command
type RecommendCmd struct {
	ProfileID    string   `name:"profile" short:"p" help:"Stored profile id (omit for an anonymous profile with configured defaults)"`
	Interests    []string `short:"i" help:"Override the profile's interests"`
	PriceCeiling string   `help:"Override the price ceiling"`
	Formats      []string `short:"f" help:"Override accepted formats (ebook, paperback, hardcover, audiobook)"`
	SkipCache    bool     `help:"Ignore cached availability"`
	JSON         bool     `help:"Print the raw JSON response"`
}

// CheckCmd represents the check command
type CheckCmd struct {
	ISBN         string   `arg:"" help:"ISBN-10 or ISBN-13"`
	PriceCeiling string   `help:"Only consider offers at or below this price"`
	Formats      []string `short:"f" help:"Only consider these formats"`
	SkipCache    bool     `help:"Ignore cached availability"`
	JSON         bool     `help:"Print the raw JSON response"`
}

func (r *RecommendCmd) Run(rc *runContext) error {
	formats, err := parseFormatFlags(r.Formats)
	if err != nil {
		return err
	}
	ceiling, err := parseCeilingFlag(r.PriceCeiling)
	if err != nil {
		return err
	}

	a, err := newApp(rc.ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := recommend.Options{
		OverrideInterests:    r.Interests,
		OverridePriceCeiling: ceiling,
		OverrideFormats:      formats,
		SkipCache:            r.SkipCache,
	}

	var resp *recommend.Response
	if r.ProfileID != "" {
		resp, err = a.orchestrator.RecommendProfile(rc.ctx, r.ProfileID, opts)
	} else {
		resp, err = a.orchestrator.Recommend(rc.ctx, a.defaults().Anonymous(), opts)
	}
	if err != nil {
		return err
	}

	if r.JSON {
		return writeJSONOutput(rc, resp)
	}
	_, err = fmt.Fprint(rc.out, renderRecommendations(resp))
	return err
}

func (c *CheckCmd) Run(rc *runContext) error {
	formats, err := parseFormatFlags(c.Formats)
	if err != nil {
		return err
	}
	ceiling, err := parseCeilingFlag(c.PriceCeiling)
	if err != nil {
		return err
	}

	a, err := newApp(rc.ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.orchestrator.CheckISBN(rc.ctx, c.ISBN, recommend.CheckOptions{
		Formats:      formats,
		PriceCeiling: ceiling,
		SkipCache:    c.SkipCache,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		return writeJSONOutput(rc, result)
	}
	_, err = fmt.Fprint(rc.out, renderCheck(result))
	return err
}

func parseFormatFlags(raw []string) ([]books.Format, error) {
	var formats []books.Format
	for _, s := range raw {
		f, ok := books.ParseFormat(s)
		if !ok {
			return nil, bherrors.NewValidationError("format", fmt.Sprintf("unknown format %q", s))
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func parseCeilingFlag(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, bherrors.NewValidationError("price-ceiling", "must be a number")
	}
	if d.IsNegative() {
		return nil, bherrors.NewValidationError("price-ceiling", "must not be negative")
	}
	return &d, nil
}

func writeJSONOutput(rc *runContext, v any) error {
	enc := json.NewEncoder(rc.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
