package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chunkdex/internal/output"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <docId>",
		Short: "Delete a document from the index",
		Long: `Delete one document by id.

The document record, its postings, and its vector nodes are all
removed; neither rank profile will return the id afterwards.
Deleting an unknown id is an error.`,
		Example: `  chunkdex delete article-42`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if _, err := eng.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Deleted %q", args[0])
			return nil
		},
	}

	return cmd
}
