package profile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/bookhound/internal/books"
	bherrors "github.com/lepinkainen/bookhound/internal/errors"
)

// yamlProfile is the on-disk shape. Prices are plain numbers in YAML.
type yamlProfile struct {
	ID              string   `yaml:"id"`
	Interests       []string `yaml:"interests"`
	PreviouslyRead  []string `yaml:"previously_read"`
	DislikedAuthors []string `yaml:"disliked_authors"`
	PriceCeiling    *float64 `yaml:"price_ceiling"`
	FormatsAccepted []string `yaml:"formats_accepted"`
	Currency        string   `yaml:"currency"`
}

// ParseYAML reads one profile per YAML document from r. Missing ids are
// generated, missing constraints come from d, and every profile is validated.
func ParseYAML(r io.Reader, d Defaults) ([]books.Profile, error) {
	dec := yaml.NewDecoder(r)

	var profiles []books.Profile
	for doc := 1; ; doc++ {
		var y yamlProfile
		if err := dec.Decode(&y); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse profile document %d: %w", doc, err)
		}

		p, err := y.toProfile(d)
		if err != nil {
			return nil, fmt.Errorf("profile document %d: %w", doc, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// LoadYAMLFile parses the profiles in path.
func LoadYAMLFile(path string, d Defaults) ([]books.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseYAML(f, d)
}

func (y yamlProfile) toProfile(d Defaults) (books.Profile, error) {
	p := books.Profile{
		ID:              y.ID,
		Interests:       nonNil(y.Interests),
		PreviouslyRead:  nonNil(y.PreviouslyRead),
		DislikedAuthors: nonNil(y.DislikedAuthors),
		Currency:        y.Currency,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if y.PriceCeiling != nil {
		p.PriceCeiling = decimal.NewFromFloat(*y.PriceCeiling)
	}
	for _, s := range y.FormatsAccepted {
		f, ok := books.ParseFormat(s)
		if !ok {
			return books.Profile{}, bherrors.NewValidationError("formats_accepted", fmt.Sprintf("unknown format %q", s))
		}
		p.FormatsAccepted = append(p.FormatsAccepted, f)
	}

	d.apply(&p, y.PriceCeiling != nil)

	if err := books.ValidateProfile(p); err != nil {
		return books.Profile{}, err
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
