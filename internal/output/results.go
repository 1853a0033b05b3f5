package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/engine"
	"github.com/Aman-CERP/chunkdex/internal/telemetry"
	"github.com/Aman-CERP/chunkdex/internal/ui"
)

// Format names accepted by the --format flag.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const snippetLimit = 120

// ResultPrinter renders search responses and documents.
type ResultPrinter struct {
	out    io.Writer
	styles ui.Styles
}

// NewResultPrinter creates a printer for out, coloring only terminals.
func NewResultPrinter(out io.Writer) *ResultPrinter {
	useColor := ui.IsTTY(out) && !ui.DetectNoColor()
	return &ResultPrinter{out: out, styles: ui.GetStyles(!useColor)}
}

// SearchResponse renders a search response in the requested format.
func (p *ResultPrinter) SearchResponse(query string, resp *engine.SearchResponse, format string) error {
	if format == FormatJSON {
		return encodeJSON(p.out, resp)
	}

	label := query
	if label == "" {
		label = "(vector query)"
	}
	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintf(p.out, "No results for %q (%s, %s)\n", label, resp.Profile, resp.Elapsed.Round(millisecond))
		return nil
	}

	_, _ = fmt.Fprintf(p.out, "%s\n\n", p.styles.Header.Render(
		fmt.Sprintf("%d of %d results for %q (%s, %s)",
			len(resp.Results), resp.Total, label, resp.Profile, resp.Elapsed.Round(millisecond))))

	for i, r := range resp.Results {
		p.result(i+1, r)
	}
	return nil
}

func (p *ResultPrinter) result(rank int, r engine.Result) {
	_, _ = fmt.Fprintf(p.out, "%s %s  %s\n",
		p.styles.Dim.Render(fmt.Sprintf("%2d.", rank)),
		p.styles.Active.Render(r.DocID),
		p.styles.Label.Render(fmt.Sprintf("score %.4f", r.Score)))

	if title := strings.TrimSpace(r.Summary.Title); title != "" {
		_, _ = fmt.Fprintf(p.out, "    %s\n", title)
	}
	if r.Summary.URL != "" {
		_, _ = fmt.Fprintf(p.out, "    %s\n", p.styles.Dim.Render(r.Summary.URL))
	}

	if r.Highlight != nil {
		_, _ = fmt.Fprintf(p.out, "    %s %s\n",
			p.styles.Label.Render(fmt.Sprintf("best chunk %s #%d:", r.Highlight.Field, r.Highlight.ChunkIndex)),
			snippet(r.Highlight.Text))
	} else if r.Features != nil && len(r.Features.MatchedTerms) > 0 {
		_, _ = fmt.Fprintf(p.out, "    %s %s\n",
			p.styles.Label.Render("matched:"),
			p.styles.Dim.Render(matchedTermsLine(r.Features.MatchedTerms)))
	}
	_, _ = fmt.Fprintln(p.out)
}

// matchedTermsLine flattens per-field matched terms in canonical field
// order, e.g. `title [cat] content [cat sat]`.
func matchedTermsLine(matched map[document.Field][]string) string {
	var parts []string
	for _, field := range document.TextFields() {
		if terms := matched[field]; len(terms) > 0 {
			parts = append(parts, fmt.Sprintf("%s [%s]", field, strings.Join(terms, " ")))
		}
	}
	return strings.Join(parts, "  ")
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= snippetLimit {
		return text
	}
	cut := text[:snippetLimit]
	if i := strings.LastIndexByte(cut, ' '); i > snippetLimit/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// Document renders one document in the requested format. Text format
// shows the non-vector fields plus per-field chunk counts.
func (p *ResultPrinter) Document(doc *document.Document, format string) error {
	switch format {
	case FormatJSON:
		return encodeJSON(p.out, doc)
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}

	_, _ = fmt.Fprintf(p.out, "%s\n", p.styles.Header.Render(doc.DocID))
	writeField := func(label, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(p.out, "  %s %s\n", p.styles.Label.Render(label), value)
		}
	}
	writeField("title:  ", doc.Title)
	writeField("url:    ", doc.URL)
	writeField("domain: ", doc.Domain)
	writeField("date:   ", doc.DocDate)
	writeField("content:", snippet(doc.Content))
	for _, field := range document.TextFields() {
		if n := len(doc.ChunksOf(field)); n > 0 {
			_, _ = fmt.Fprintf(p.out, "  %s %d chunks, %d embeddings\n",
				p.styles.Label.Render(string(field)+":"), n, len(doc.EmbeddingsOf(field)))
		}
	}
	return nil
}

// Stats renders engine statistics in the requested format.
func (p *ResultPrinter) Stats(stats *engine.Stats, format string) error {
	if format == FormatJSON {
		return encodeJSON(p.out, stats)
	}

	_, _ = fmt.Fprintf(p.out, "%s\n\n", p.styles.Header.Render("Index statistics"))
	_, _ = fmt.Fprintf(p.out, "  Documents: %d\n", stats.Documents)
	_, _ = fmt.Fprintf(p.out, "  Store:     %s\n", ui.FormatBytes(stats.StoreBytes))
	for _, field := range document.TextFields() {
		ts := stats.Text[field]
		vs := stats.Vector[field]
		_, _ = fmt.Fprintf(p.out, "  %-9s %d terms, %d postings, avg length %.1f, %d vector chunks\n",
			string(field)+":", ts.Terms, ts.Postings, ts.AvgDocLength, vs.Nodes)
	}
	if stats.Cache != nil {
		_, _ = fmt.Fprintf(p.out, "  Cache:     %d entries, %.1f%% hit rate (%d hits / %d misses)\n",
			stats.Cache.Entries, stats.Cache.HitRate*100, stats.Cache.Hits, stats.Cache.Misses)
	}
	if stats.Telemetry != nil {
		p.telemetry(stats.Telemetry)
	}
	return nil
}

func (p *ResultPrinter) telemetry(snap *telemetry.Snapshot) {
	_, _ = fmt.Fprintf(p.out, "\n%s\n", p.styles.Header.Render("Query telemetry"))
	_, _ = fmt.Fprintf(p.out, "  Queries:   %d since %s (%.1f%% zero-result, %d exact repeats)\n",
		snap.TotalQueries, snap.Since.Format("2006-01-02 15:04"),
		snap.ZeroResultPercentage(), snap.ExactRepeatCount)

	for _, profile := range sortedKeys(snap.ProfileCounts) {
		_, _ = fmt.Fprintf(p.out, "  %-22s %d\n", profile+":", snap.ProfileCounts[profile])
	}

	if len(snap.TopTerms) > 0 {
		var terms []string
		for _, tc := range snap.TopTerms {
			terms = append(terms, fmt.Sprintf("%s (%d)", tc.Term, tc.Count))
			if len(terms) == 10 {
				break
			}
		}
		_, _ = fmt.Fprintf(p.out, "  Top terms: %s\n", strings.Join(terms, ", "))
	}

	var bands []string
	for _, bucket := range telemetry.Buckets() {
		if n := snap.LatencyDistribution[bucket]; n > 0 {
			bands = append(bands, fmt.Sprintf("%s: %d", bucket, n))
		}
	}
	if len(bands) > 0 {
		_, _ = fmt.Fprintf(p.out, "  Latency:   %s\n", strings.Join(bands, "  "))
	}

	if len(snap.ZeroResultQueries) > 0 {
		_, _ = fmt.Fprintf(p.out, "  No hits:   %s\n",
			p.styles.Dim.Render(strings.Join(tail(snap.ZeroResultQueries, 5), " | ")))
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// tail returns the last n entries, preserving order.
func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func encodeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const millisecond = 1000000 // nanoseconds
