package document

import (
	"fmt"

	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

// SummaryView selects which fields a query result carries back.
type SummaryView string

const (
	// SummaryAll returns every stored field including the embedding
	// mappings verbatim.
	SummaryAll SummaryView = "all-summary"

	// SummaryAllNonVector returns every stored field except the
	// embedding mappings. This is the default for human-facing output,
	// where raw vectors are noise.
	SummaryAllNonVector SummaryView = "all-non-vector-summary"
)

// ParseSummaryView resolves a user-supplied view name. The empty string
// maps to SummaryAllNonVector.
func ParseSummaryView(name string) (SummaryView, error) {
	switch SummaryView(name) {
	case "":
		return SummaryAllNonVector, nil
	case SummaryAll:
		return SummaryAll, nil
	case SummaryAllNonVector:
		return SummaryAllNonVector, nil
	default:
		return "", cdxerrors.ValidationError(
			fmt.Sprintf("unknown summary view %q (valid: %s, %s)", name, SummaryAll, SummaryAllNonVector), nil)
	}
}

// Summary is the hydrated field set attached to a query result. The
// embedding slices are nil under SummaryAllNonVector and elided from
// JSON output.
type Summary struct {
	DocID         string   `json:"docId"`
	URL           string   `json:"url"`
	Domain        string   `json:"domain"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	DocDate       string   `json:"docDate"`
	ChunksTitle   []string `json:"chunksTitle"`
	ChunksContent []string `json:"chunksContent"`

	EmbeddingsTitle   []ChunkEmbedding `json:"embeddingsTitle,omitempty"`
	EmbeddingsContent []ChunkEmbedding `json:"embeddingsContent,omitempty"`
}

// Summary projects the document through a view. Both views carry all
// non-vector fields; only SummaryAll includes the embeddings.
func (d *Document) Summary(view SummaryView) Summary {
	s := Summary{
		DocID:         d.DocID,
		URL:           d.URL,
		Domain:        d.Domain,
		Title:         d.Title,
		Content:       d.Content,
		DocDate:       d.DocDate,
		ChunksTitle:   d.ChunksTitle,
		ChunksContent: d.ChunksContent,
	}
	if view == SummaryAll {
		s.EmbeddingsTitle = d.EmbeddingsTitle
		s.EmbeddingsContent = d.EmbeddingsContent
	}
	return s
}
