package candidates

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/isbn"
)

// rawCandidate accepts the field spellings models commonly produce.
type rawCandidate struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN13          string `json:"isbn_13"`
	ISBN13Alt       string `json:"isbn13"`
	ISBN            string `json:"isbn"`
	ISBN10          string `json:"isbn_10"`
	PublicationYear int    `json:"publication_year"`
	Reasoning       string `json:"reasoning"`
}

// ParseCandidates decodes a model reply into validated candidates.
//
// The reply may be a bare JSON array or an object with a "recommendations"
// or "books" array, optionally wrapped in a Markdown code fence. Entries
// without a title or with an invalid ISBN are dropped. A reply that lists
// books but yields none with a valid ISBN is an error.
func ParseCandidates(reply string) ([]books.Candidate, error) {
	body := stripCodeFence(reply)
	if body == "" {
		return nil, fmt.Errorf("parsing candidates: empty response")
	}

	var raw []rawCandidate
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			return nil, fmt.Errorf("parsing candidates: %w", err)
		}
	} else {
		var wrapped struct {
			Recommendations []rawCandidate `json:"recommendations"`
			Books           []rawCandidate `json:"books"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("parsing candidates: %w", err)
		}
		raw = append(wrapped.Recommendations, wrapped.Books...)
	}

	result := make([]books.Candidate, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		c, ok := r.validate()
		if !ok {
			slog.Debug("Discarding candidate", "title", r.Title, "isbn", r.isbn())
			continue
		}
		if seen[c.ISBN13] {
			continue
		}
		seen[c.ISBN13] = true
		result = append(result, c)
	}

	if len(raw) > 0 && len(result) == 0 {
		return nil, fmt.Errorf("parsing candidates: none of %d suggestions had a valid ISBN", len(raw))
	}
	return result, nil
}

func (r rawCandidate) isbn() string {
	for _, v := range []string{r.ISBN13, r.ISBN13Alt, r.ISBN} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return r.ISBN10
}

func (r rawCandidate) validate() (books.Candidate, bool) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return books.Candidate{}, false
	}

	res := isbn.Validate(r.isbn())
	if !res.Valid {
		return books.Candidate{}, false
	}

	isbn10 := res.ISBN10
	if isbn10 == "" && isbn.ValidateISBN10(r.ISBN10) {
		isbn10 = strings.ToUpper(isbn.Clean(r.ISBN10))
	}

	return books.Candidate{
		Title:           title,
		Author:          strings.TrimSpace(r.Author),
		ISBN13:          res.ISBN13,
		ISBN10:          isbn10,
		PublicationYear: r.PublicationYear,
		Reasoning:       strings.TrimSpace(r.Reasoning),
	}, true
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
