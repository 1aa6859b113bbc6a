package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/cache"
	"github.com/lepinkainen/bookhound/internal/recommend"
	"github.com/lepinkainen/bookhound/internal/source"
)

// sourceRow is one line of the sources listing. Missing rows name an
// enabled source that has no registered adapter.
type sourceRow struct {
	adapter source.Adapter
	name    string
	enabled bool
	missing bool
}

type outputStyles struct {
	box      lipgloss.Style
	header   lipgloss.Style
	title    lipgloss.Style
	author   lipgloss.Style
	price    lipgloss.Style
	free     lipgloss.Style
	muted    lipgloss.Style
	warning  lipgloss.Style
	reasoning lipgloss.Style
}

func newOutputStyles() outputStyles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	box := lipgloss.NewStyle().
		Border(asciiBorder).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	return outputStyles{
		box: box,
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110")),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		author: lipgloss.NewStyle().
			Foreground(lipgloss.Color("248")),
		price: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
		free: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("114")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		reasoning: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("248")),
	}
}

var styles = newOutputStyles()

// formatPrice renders a record's price, "free" when it has none.
func formatPrice(r books.AvailabilityRecord) string {
	if r.IsFree() {
		return "free"
	}
	if r.Currency == "" {
		return r.Price.StringFixed(2)
	}
	return r.Price.StringFixed(2) + " " + r.Currency
}

func renderPrice(r books.AvailabilityRecord) string {
	if r.IsFree() {
		return styles.free.Render(formatPrice(r))
	}
	return styles.price.Render(formatPrice(r))
}

func renderOption(r books.AvailabilityRecord) string {
	parts := []string{
		renderPrice(r),
		string(r.Format),
		"via " + r.Source,
	}
	if !r.InStock {
		parts = append(parts, styles.warning.Render("not in stock"))
	}
	if r.EstimatedDelivery != "" {
		parts = append(parts, styles.muted.Render(r.EstimatedDelivery))
	}
	return strings.Join(parts, "  ")
}

func renderRecommendations(resp *recommend.Response) string {
	var sb strings.Builder

	if len(resp.Recommendations) == 0 {
		sb.WriteString(styles.warning.Render("No recommendations met the criteria."))
		sb.WriteString("\n")
	}

	for i, result := range resp.Recommendations {
		sb.WriteString(renderResult(i+1, result))
		sb.WriteString("\n")
	}

	sb.WriteString(styles.muted.Render(fmt.Sprintf(
		"%d candidates, %d filtered, %d previously read, %d by disliked authors",
		resp.TotalCandidates, resp.FilteredCount, resp.ExcludedRead, resp.ExcludedAuthors,
	)))
	sb.WriteString("\n")
	return sb.String()
}

func renderResult(rank int, result books.BookResult) string {
	c := result.Candidate
	lines := []string{
		styles.header.Render(fmt.Sprintf("#%d", rank)) + " " + styles.title.Render(c.Title),
		styles.author.Render(describeCandidate(c)),
	}
	if result.BestOption != nil {
		lines = append(lines, "Best: "+renderOption(*result.BestOption))
		if result.BestOption.URL != "" {
			lines = append(lines, styles.muted.Render(result.BestOption.URL))
		}
	}
	if c.Reasoning != "" {
		lines = append(lines, styles.reasoning.Render(c.Reasoning))
	}
	return styles.box.Render(strings.Join(lines, "\n"))
}

func describeCandidate(c books.Candidate) string {
	desc := c.Author
	if c.PublicationYear > 0 {
		desc = fmt.Sprintf("%s (%d)", desc, c.PublicationYear)
	}
	return desc + "  ISBN " + c.ISBN13
}

func renderCheck(result *recommend.CheckResult) string {
	var sb strings.Builder
	sb.WriteString(styles.header.Render("ISBN " + result.ISBN13))
	if result.ISBN10 != "" {
		sb.WriteString(styles.muted.Render(" / " + result.ISBN10))
	}
	sb.WriteString("\n")

	if len(result.Availability) == 0 {
		sb.WriteString(styles.warning.Render("Not available from any enabled source."))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, r := range result.Availability {
		sb.WriteString("  " + renderOption(r) + "\n")
	}
	if result.BestOption != nil {
		sb.WriteString("Best: " + renderOption(*result.BestOption) + "\n")
	} else {
		sb.WriteString(styles.warning.Render("No option meets the criteria."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderSources(rows []sourceRow) string {
	var sb strings.Builder
	for _, row := range rows {
		if row.missing {
			sb.WriteString(fmt.Sprintf("%s  %s\n",
				styles.title.Render(row.name),
				styles.warning.Render("enabled but not registered (missing API key?)")))
			continue
		}

		status := styles.muted.Render("disabled")
		if row.enabled {
			status = styles.free.Render("enabled")
		}

		var formats []string
		for _, f := range books.AllFormats {
			if row.adapter.SupportsFormat(f) {
				formats = append(formats, string(f))
			}
		}

		sb.WriteString(fmt.Sprintf("%s  %s  %s  %s\n",
			styles.title.Render(row.adapter.Name()),
			status,
			strings.Join(formats, ","),
			styles.muted.Render(fmt.Sprintf("%d req/min", row.adapter.RateLimit().RequestsPerMinute)),
		))
	}
	return sb.String()
}

func renderProfile(p books.Profile) string {
	lines := []string{
		styles.header.Render(p.ID),
		"Interests: " + strings.Join(p.Interests, ", "),
		"Formats: " + joinFormats(p.FormatsAccepted),
		"Price ceiling: " + styles.price.Render(strings.TrimSpace(p.PriceCeiling.StringFixed(2)+" "+p.Currency)),
	}
	if len(p.PreviouslyRead) > 0 {
		lines = append(lines, styles.muted.Render(fmt.Sprintf("%d previously read", len(p.PreviouslyRead))))
	}
	if len(p.DislikedAuthors) > 0 {
		lines = append(lines, "Disliked authors: "+strings.Join(p.DislikedAuthors, ", "))
	}
	return styles.box.Render(strings.Join(lines, "\n")) + "\n"
}

func joinFormats(formats []books.Format) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func renderStats(stats cache.Stats) string {
	return fmt.Sprintf("%s %d\n%s %d\n%s %d\n",
		styles.header.Render("Entries:"), stats.Size,
		styles.header.Render("Valid:  "), stats.Valid,
		styles.header.Render("Expired:"), stats.Expired,
	)
}
