package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/output"
)

func newGetCmd() *cobra.Command {
	var (
		format      string
		summaryView string
	)

	cmd := &cobra.Command{
		Use:   "get <docId>",
		Short: "Fetch a stored document by id",
		Long: `Fetch one document from the store.

The default view omits the chunk embeddings; pass
--summary all-summary to include them verbatim.`,
		Example: `  # Fetch a document
  chunkdex get article-42

  # Include the embedding mappings, as JSON
  chunkdex get article-42 --summary all-summary --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			view, err := document.ParseSummaryView(summaryView)
			if err != nil {
				return err
			}

			doc, err := eng.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if view == document.SummaryAllNonVector {
				doc.EmbeddingsTitle = nil
				doc.EmbeddingsContent = nil
			}
			printer := output.NewResultPrinter(cmd.OutOrStdout())
			return printer.Document(doc, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")
	cmd.Flags().StringVar(&summaryView, "summary", "", "Summary view: all-summary, all-non-vector-summary")

	return cmd
}
