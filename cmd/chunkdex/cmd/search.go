package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chunkdex/internal/engine"
	"github.com/Aman-CERP/chunkdex/internal/output"
	"github.com/Aman-CERP/chunkdex/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	profile       string
	limit         int
	offset        int
	fields        []string
	summaryView   string
	format        string
	efSearch      int
	embeddingFile string
	interactive   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index",
		Long: `Search the index with a rank profile.

The bm25 profile scores query text lexically over title and content.
The embedding_similarity profile ranks by the closest chunk embedding
and needs a query vector, supplied as a JSON array via
--embedding-file (use "-" for stdin).`,
		Example: `  # Lexical search
  chunkdex search "solar panel efficiency"

  # Vector search with a query embedding
  chunkdex search --profile embedding_similarity --embedding-file query.json

  # Restrict to titles, second page of five
  chunkdex search "solar" --field title --limit 5 --offset 5

  # Interactive search-as-you-type
  chunkdex search --interactive`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "Rank profile: bm25, embedding_similarity (default: configured)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: configured)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Ranked results to skip before the page starts")
	cmd.Flags().StringSliceVar(&opts.fields, "field", nil, "Restrict matching to fields: title, content (repeatable)")
	cmd.Flags().StringVar(&opts.summaryView, "summary", "", "Summary view: all-summary, all-non-vector-summary")
	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatText, "Output format: text, json")
	cmd.Flags().IntVar(&opts.efSearch, "ef-search", 0, "Vector search beam width for this query")
	cmd.Flags().StringVar(&opts.embeddingFile, "embedding-file", "", "JSON array file holding the query embedding (- for stdin)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Interactive search (TTY only)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	eng, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if opts.interactive {
		return ui.RunSearch(ctx, ui.SearchConfig{
			Searcher: eng,
			Output:   cmd.OutOrStdout(),
			NoColor:  ui.DetectNoColor(),
			Limit:    opts.limit,
			Fields:   opts.fields,
		})
	}

	embedding, err := readEmbedding(cmd, opts.embeddingFile)
	if err != nil {
		return err
	}

	resp, err := eng.Search(ctx, engine.Query{
		Profile:     opts.profile,
		Text:        query,
		Embedding:   embedding,
		Fields:      opts.fields,
		SummaryView: opts.summaryView,
		Limit:       opts.limit,
		Offset:      opts.offset,
		EfSearch:    opts.efSearch,
	})
	if err != nil {
		return err
	}

	printer := output.NewResultPrinter(cmd.OutOrStdout())
	return printer.SearchResponse(query, resp, opts.format)
}

// readEmbedding loads a query vector from a JSON array file, or stdin
// for "-". An empty path means no vector was supplied.
func readEmbedding(cmd *cobra.Command, path string) ([]float32, error) {
	if path == "" {
		return nil, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query embedding: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("query embedding must be a JSON array of numbers: %w", err)
	}
	return vector, nil
}
