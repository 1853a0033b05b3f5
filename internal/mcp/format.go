package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/engine"
)

// snippetRunes caps the content excerpt length in markdown output.
const snippetRunes = 240

// FormatSearchResults formats a search response as markdown.
func FormatSearchResults(query string, resp *engine.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", resp.Total))
	if resp.Total != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " under profile `%s` in %s\n\n", resp.Profile, formatElapsed(resp.Elapsed))

	for i, r := range resp.Results {
		formatResult(&sb, i+1, &r)
	}

	return sb.String()
}

// FormatDocument formats a stored document as markdown.
func FormatDocument(doc *document.Document) string {
	if doc == nil {
		return "No document."
	}

	var sb strings.Builder
	title := doc.Title
	if title == "" {
		title = doc.DocID
	}
	fmt.Fprintf(&sb, "## %s\n\n", title)
	fmt.Fprintf(&sb, "**ID:** `%s`\n", doc.DocID)
	if doc.URL != "" {
		fmt.Fprintf(&sb, "**URL:** %s\n", doc.URL)
	}
	if doc.Domain != "" {
		fmt.Fprintf(&sb, "**Domain:** %s\n", doc.Domain)
	}
	if doc.DocDate != "" {
		fmt.Fprintf(&sb, "**Date:** %s\n", doc.DocDate)
	}
	fmt.Fprintf(&sb, "**Chunks:** %d title, %d content\n\n",
		len(doc.ChunksTitle), len(doc.ChunksContent))

	if doc.Content != "" {
		sb.WriteString(doc.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatResult formats a single ranked result.
func formatResult(sb *strings.Builder, num int, r *engine.Result) {
	// Header with document id and score
	fmt.Fprintf(sb, "### %d. %s (score: %.4f)\n", num, r.DocID, r.Score)

	if r.Summary.Title != "" {
		fmt.Fprintf(sb, "**%s**\n", r.Summary.Title)
	}

	// Attribute line
	var attrs []string
	if r.Summary.URL != "" {
		attrs = append(attrs, r.Summary.URL)
	}
	if r.Summary.Domain != "" {
		attrs = append(attrs, r.Summary.Domain)
	}
	if r.Summary.DocDate != "" {
		attrs = append(attrs, r.Summary.DocDate)
	}
	if len(attrs) > 0 {
		fmt.Fprintf(sb, "%s\n", strings.Join(attrs, " | "))
	}

	if reason := matchReason(r); reason != "" {
		fmt.Fprintf(sb, "_%s_\n", reason)
	}

	if snippet := resultSnippet(r); snippet != "" {
		fmt.Fprintf(sb, "\n> %s\n", snippet)
	}

	sb.WriteString("\n")
}

// resultSnippet picks the text excerpt for a result: the highlighted chunk
// when the profile produced one, otherwise the head of the content.
func resultSnippet(r *engine.Result) string {
	if r.Highlight != nil && r.Highlight.Text != "" {
		return excerpt(r.Highlight.Text)
	}
	return excerpt(r.Summary.Content)
}

// matchReason creates a human-readable explanation of why a result matched.
func matchReason(r *engine.Result) string {
	if r.Features == nil {
		return ""
	}

	var parts []string

	// Term-based reason, in canonical field order
	for _, field := range document.TextFields() {
		terms := r.Features.MatchedTerms[field]
		if len(terms) == 0 {
			continue
		}
		if len(terms) > 5 {
			terms = terms[:5]
		}
		parts = append(parts, fmt.Sprintf("%s matched: %s", field, strings.Join(terms, ", ")))
	}

	// Chunk-based reason
	if r.Features.BestField != "" {
		if cf, ok := r.Features.ClosestChunk[r.Features.BestField]; ok {
			parts = append(parts, fmt.Sprintf("closest chunk %d of %s (closeness %.4f)",
				cf.ChunkIndex, r.Features.BestField, cf.Closeness))
		}
	}

	return strings.Join(parts, "; ")
}

// ToSearchOutput converts a search response to the tool output format.
func ToSearchOutput(resp *engine.SearchResponse) SearchOutput {
	if resp == nil {
		return SearchOutput{Results: []SearchResultOutput{}}
	}

	out := SearchOutput{
		Results:   make([]SearchResultOutput, 0, len(resp.Results)),
		Total:     resp.Total,
		Profile:   string(resp.Profile),
		ElapsedMs: float64(resp.Elapsed) / float64(time.Millisecond),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, toResultOutput(&r))
	}
	return out
}

// toResultOutput converts a single result to the tool output format.
func toResultOutput(r *engine.Result) SearchResultOutput {
	out := SearchResultOutput{
		DocID:       r.DocID,
		Score:       r.Score,
		Title:       r.Summary.Title,
		URL:         r.Summary.URL,
		Domain:      r.Summary.Domain,
		DocDate:     r.Summary.DocDate,
		Snippet:     resultSnippet(r),
		MatchReason: matchReason(r),
	}

	if r.Features != nil {
		out.BestField = string(r.Features.BestField)
		if len(r.Features.MatchedTerms) > 0 {
			out.MatchedTerms = make(map[string][]string, len(r.Features.MatchedTerms))
			for field, terms := range r.Features.MatchedTerms {
				out.MatchedTerms[string(field)] = terms
			}
		}
	}

	return out
}

// excerpt truncates text to the snippet budget, cutting at a rune boundary.
func excerpt(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes-3]) + "..."
}

// formatElapsed renders a query latency for markdown output.
func formatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// chunkTotal counts chunks across both text fields.
func chunkTotal(doc *document.Document) int {
	if doc == nil {
		return 0
	}
	return len(doc.ChunksTitle) + len(doc.ChunksContent)
}
