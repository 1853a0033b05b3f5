package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(context.Background(), WithInMemory(), WithDimensions(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func sampleDoc(id, title, content string) *Document {
	return &Document{
		DocID:         id,
		Title:         title,
		Content:       content,
		ChunksTitle:   []string{title},
		ChunksContent: []string{content},
		EmbeddingsTitle: []ChunkEmbedding{
			{ChunkIndex: 0, Vector: []float32{1, 0, 0, 0}},
		},
		EmbeddingsContent: []ChunkEmbedding{
			{ChunkIndex: 0, Vector: []float32{0, 1, 0, 0}},
		},
	}
}

func TestOpen_RequiresLocation(t *testing.T) {
	// Given: no data directory and no in-memory option
	// When: opening
	_, err := Open(context.Background())

	// Then: fails with the sentinel error
	assert.ErrorIs(t, err, ErrNoLocation)
}

func TestOpen_InMemory(t *testing.T) {
	// When: opening an in-memory index
	idx := openMemoryIndex(t)

	// Then: it reports the configured dimensions
	assert.Equal(t, 4, idx.Dimensions())
}

func TestIndex_PutGetDelete_RoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := openMemoryIndex(t)

	// When: storing a new document
	prev, err := idx.Put(ctx, sampleDoc("doc-1", "Solar panels", "Panels convert sunlight."))
	require.NoError(t, err)

	// Then: there was no previous version
	assert.Nil(t, prev)

	// And: it can be fetched back
	got, err := idx.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Solar panels", got.Title)

	// When: deleting it
	removed, err := idx.Delete(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", removed.DocID)

	// Then: it is gone
	_, err = idx.Get(ctx, "doc-1")
	assert.Error(t, err)
}

func TestIndex_Put_ReturnsReplacedVersion(t *testing.T) {
	ctx := context.Background()
	idx := openMemoryIndex(t)

	_, err := idx.Put(ctx, sampleDoc("doc-1", "First title", "Body."))
	require.NoError(t, err)

	// When: storing the same id again
	prev, err := idx.Put(ctx, sampleDoc("doc-1", "Second title", "Body."))
	require.NoError(t, err)

	// Then: the previous version comes back
	require.NotNil(t, prev)
	assert.Equal(t, "First title", prev.Title)
}

func TestIndex_Search_BM25(t *testing.T) {
	ctx := context.Background()
	idx := openMemoryIndex(t)

	_, err := idx.Put(ctx, sampleDoc("doc-1", "Solar panels", "Panels convert sunlight into power."))
	require.NoError(t, err)
	_, err = idx.Put(ctx, sampleDoc("doc-2", "Wind turbines", "Turbines convert wind into power."))
	require.NoError(t, err)

	// When: searching lexically
	resp, err := idx.Search(ctx, Query{Text: "solar"})
	require.NoError(t, err)

	// Then: only the solar document matches
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-1", resp.Results[0].DocID)
}

func TestIndex_Search_EmbeddingSimilarity(t *testing.T) {
	ctx := context.Background()
	idx := openMemoryIndex(t)

	_, err := idx.Put(ctx, sampleDoc("doc-1", "Solar panels", "Panels convert sunlight."))
	require.NoError(t, err)

	// When: searching by vector
	resp, err := idx.Search(ctx, Query{
		Profile:   "embedding_similarity",
		Embedding: []float32{1, 0, 0, 0},
	})
	require.NoError(t, err)

	// Then: the document is found via its title chunk
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "doc-1", resp.Results[0].DocID)
}

func TestIndex_Stats_CountsDocuments(t *testing.T) {
	ctx := context.Background()
	idx := openMemoryIndex(t)

	_, err := idx.Put(ctx, sampleDoc("doc-1", "Solar panels", "Body."))
	require.NoError(t, err)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
}

func TestIndex_Close_RejectsFurtherUse(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(ctx, WithInMemory(), WithDimensions(4))
	require.NoError(t, err)

	require.NoError(t, idx.Close())

	// When/Then: every operation reports the closed state
	_, err = idx.Put(ctx, sampleDoc("doc-1", "t", "c"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Search(ctx, Query{Text: "t"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, idx.Close())
}

func TestOpen_DataDir_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dataDir := filepath.Join(t.TempDir(), ".chunkdex")

	idx, err := Open(ctx, WithDataDir(dataDir), WithDimensions(4))
	require.NoError(t, err)
	_, err = idx.Put(ctx, sampleDoc("doc-1", "Solar panels", "Body."))
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// When: reopening the same directory
	idx, err = Open(ctx, WithDataDir(dataDir), WithDimensions(4))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Then: the document survived and is searchable again
	resp, err := idx.Search(ctx, Query{Text: "solar"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-1", resp.Results[0].DocID)
}

func TestOpen_DataDir_SecondOpenerFailsFast(t *testing.T) {
	ctx := context.Background()
	dataDir := filepath.Join(t.TempDir(), ".chunkdex")

	idx, err := Open(ctx, WithDataDir(dataDir), WithDimensions(4))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// When: a second opener targets the same directory
	_, err = Open(ctx, WithDataDir(dataDir), WithDimensions(4))

	// Then: the single-owner lock rejects it
	assert.Error(t, err)
}
