// Package candidates produces book suggestions for a reader profile from a
// language model and validates them before they enter the availability pipeline.
package candidates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/bookhound/internal/books"
)

// ErrNotConfigured is returned when no language model credentials are available.
var ErrNotConfigured = errors.New("candidate generator not configured: missing API key")

// Generator produces up to count candidates for profile.
type Generator interface {
	Generate(ctx context.Context, profile books.Profile, count int) ([]books.Candidate, error)
}

// TextGenerator sends a prompt to a language model and returns its raw reply.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// LLMGenerator builds a prompt from the profile and parses the model's JSON reply.
type LLMGenerator struct {
	text TextGenerator
}

// Compile-time check that LLMGenerator implements Generator.
var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator wraps text. A nil text generator yields ErrNotConfigured on every call.
func NewLLMGenerator(text TextGenerator) *LLMGenerator {
	return &LLMGenerator{text: text}
}

// Generate asks the model for count books and returns the ones with valid ISBNs.
func (g *LLMGenerator) Generate(ctx context.Context, profile books.Profile, count int) ([]books.Candidate, error) {
	if g == nil || g.text == nil {
		return nil, ErrNotConfigured
	}
	if count <= 0 {
		return []books.Candidate{}, nil
	}

	prompt := BuildPrompt(profile, count)
	slog.Debug("Requesting candidates", "profile", profile.ID, "count", count)

	reply, err := g.text.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating candidates: %w", err)
	}

	found, err := ParseCandidates(reply)
	if err != nil {
		return nil, err
	}
	if len(found) > count {
		found = found[:count]
	}

	slog.Debug("Candidates generated", "profile", profile.ID, "count", len(found))
	return found, nil
}

// BuildPrompt renders the instruction sent to the model.
func BuildPrompt(profile books.Profile, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Recommend %d books for a reader with the following profile.\n\n", count)
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(profile.Interests, ", "))
	}
	if len(profile.PreviouslyRead) > 0 {
		fmt.Fprintf(&b, "Already read (ISBNs, do not recommend): %s\n", strings.Join(profile.PreviouslyRead, ", "))
	}
	if len(profile.DislikedAuthors) > 0 {
		fmt.Fprintf(&b, "Avoid these authors: %s\n", strings.Join(profile.DislikedAuthors, ", "))
	}
	if len(profile.FormatsAccepted) > 0 {
		formats := make([]string, len(profile.FormatsAccepted))
		for i, f := range profile.FormatsAccepted {
			formats[i] = string(f)
		}
		fmt.Fprintf(&b, "Preferred formats: %s\n", strings.Join(formats, ", "))
	}

	b.WriteString(`
Reply with a JSON array only. Each element must have these fields:
  "title" (string), "author" (string), "isbn_13" (string, a real ISBN-13 of an existing edition),
  "isbn_10" (string or null), "publication_year" (integer), "reasoning" (one sentence).
`)
	return b.String()
}
