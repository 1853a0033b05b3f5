// Package document defines the document model shared by the store, the
// text index, and the vector index: identity, stored attributes, chunk
// text, per-chunk embeddings, and the integrity rules that bind them.
package document

// Field identifies a searchable text field. Each field carries both the
// tokenized text used for BM25 and a paired sequence of chunk embeddings
// used for vector search.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// TextFields returns all searchable fields in canonical order.
func TextFields() []Field {
	return []Field{FieldTitle, FieldContent}
}

// ChunkEmbedding pairs a chunk index with its embedding vector.
// ChunkIndex refers into the field's chunk array: entry i describes
// chunksTitle[i] or chunksContent[i].
type ChunkEmbedding struct {
	ChunkIndex int       `json:"chunkIndex" yaml:"chunk_index"`
	Vector     []float32 `json:"vector" yaml:"vector"`
}

// Document is the unit of ingestion and retrieval.
//
// URL, Domain and DocDate are opaque attributes: stored and returned
// verbatim, never tokenized. Title and Content are both tokenized for
// search and stored verbatim for summaries. The chunk arrays hold the
// text each embedding was computed from; the embedding arrays must align
// with them one-to-one (see Validate).
type Document struct {
	DocID   string `json:"docId"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Title   string `json:"title"`
	Content string `json:"content"`
	DocDate string `json:"docDate"`

	ChunksTitle   []string `json:"chunksTitle"`
	ChunksContent []string `json:"chunksContent"`

	EmbeddingsTitle   []ChunkEmbedding `json:"embeddingsTitle"`
	EmbeddingsContent []ChunkEmbedding `json:"embeddingsContent"`
}

// TextOf returns the searchable text for a field.
func (d *Document) TextOf(field Field) string {
	if field == FieldTitle {
		return d.Title
	}
	return d.Content
}

// ChunksOf returns the chunk texts for a field.
func (d *Document) ChunksOf(field Field) []string {
	if field == FieldTitle {
		return d.ChunksTitle
	}
	return d.ChunksContent
}

// EmbeddingsOf returns the chunk embeddings for a field.
func (d *Document) EmbeddingsOf(field Field) []ChunkEmbedding {
	if field == FieldTitle {
		return d.EmbeddingsTitle
	}
	return d.EmbeddingsContent
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// alias index-internal state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.ChunksTitle = append([]string(nil), d.ChunksTitle...)
	out.ChunksContent = append([]string(nil), d.ChunksContent...)
	out.EmbeddingsTitle = cloneEmbeddings(d.EmbeddingsTitle)
	out.EmbeddingsContent = cloneEmbeddings(d.EmbeddingsContent)
	return &out
}

func cloneEmbeddings(in []ChunkEmbedding) []ChunkEmbedding {
	if in == nil {
		return nil
	}
	out := make([]ChunkEmbedding, len(in))
	for i, e := range in {
		out[i] = ChunkEmbedding{
			ChunkIndex: e.ChunkIndex,
			Vector:     append([]float32(nil), e.Vector...),
		}
	}
	return out
}
