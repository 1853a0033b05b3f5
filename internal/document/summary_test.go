package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

func TestParseSummaryView(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SummaryView
		wantErr bool
	}{
		{name: "all summary", input: "all-summary", want: SummaryAll},
		{name: "non vector summary", input: "all-non-vector-summary", want: SummaryAllNonVector},
		{name: "empty defaults to non vector", input: "", want: SummaryAllNonVector},
		{name: "unknown view", input: "minimal", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := ParseSummaryView(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cdxerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, view)
		})
	}
}

func TestSummary_AllView_IncludesEmbeddings(t *testing.T) {
	// Given: a document with embeddings on both fields
	doc := testDoc("d1")

	// When: projecting the full view
	s := doc.Summary(SummaryAll)

	// Then: every field is present, embeddings verbatim
	assert.Equal(t, "d1", s.DocID)
	assert.Equal(t, doc.URL, s.URL)
	assert.Equal(t, doc.Domain, s.Domain)
	assert.Equal(t, doc.Title, s.Title)
	assert.Equal(t, doc.Content, s.Content)
	assert.Equal(t, doc.DocDate, s.DocDate)
	assert.Equal(t, doc.ChunksTitle, s.ChunksTitle)
	assert.Equal(t, doc.ChunksContent, s.ChunksContent)
	assert.Equal(t, doc.EmbeddingsTitle, s.EmbeddingsTitle)
	assert.Equal(t, doc.EmbeddingsContent, s.EmbeddingsContent)
}

func TestSummary_NonVectorView_OmitsEmbeddings(t *testing.T) {
	// Given: a document with embeddings on both fields
	doc := testDoc("d1")

	// When: projecting the non-vector view
	s := doc.Summary(SummaryAllNonVector)

	// Then: all non-vector fields survive, embeddings do not
	assert.Equal(t, "d1", s.DocID)
	assert.Equal(t, doc.ChunksTitle, s.ChunksTitle)
	assert.Equal(t, doc.ChunksContent, s.ChunksContent)
	assert.Nil(t, s.EmbeddingsTitle)
	assert.Nil(t, s.EmbeddingsContent)
}

func TestSummary_NonVectorView_JSONOmitsEmbeddingKeys(t *testing.T) {
	// Given: a non-vector summary
	doc := testDoc("d1")
	s := doc.Summary(SummaryAllNonVector)

	// When: marshaling to JSON
	data, err := json.Marshal(s)
	require.NoError(t, err)

	// Then: the embedding keys are absent entirely
	assert.NotContains(t, string(data), "embeddingsTitle")
	assert.NotContains(t, string(data), "embeddingsContent")
	assert.Contains(t, string(data), `"docId":"d1"`)
	assert.Contains(t, string(data), `"chunksTitle"`)
}
