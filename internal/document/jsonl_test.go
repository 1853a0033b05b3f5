package document

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_ReadsDocumentsAndSkipsBlanks(t *testing.T) {
	// Given: two documents separated by blank lines
	input := `{"docId":"d1","title":"first"}

{"docId":"d2","title":"second"}

`

	dec := NewDecoder(strings.NewReader(input))

	// When/Then: both documents come back in order
	d1, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "d1", d1.DocID)
	assert.Equal(t, "first", d1.Title)

	d2, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "d2", d2.DocID)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_MalformedLine_ReportsLineAndContinues(t *testing.T) {
	// Given: a malformed line between two valid ones
	input := `{"docId":"d1"}
{not json}
{"docId":"d3"}`

	dec := NewDecoder(strings.NewReader(input))

	d1, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "d1", d1.DocID)

	// When: hitting the bad line
	_, err = dec.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	// Then: the stream is still readable past it
	d3, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "d3", d3.DocID)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_EmptyInput(t *testing.T) {
	dec := NewDecoder(strings.NewReader(""))
	_, err := dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_RoundTripsEmbeddings(t *testing.T) {
	// Given: a full document serialized on one line
	input := `{"docId":"d1","url":"https://example.com","domain":"example.com",` +
		`"title":"t","content":"c","docDate":"2026-01-01",` +
		`"chunksTitle":["t"],"chunksContent":["c"],` +
		`"embeddingsTitle":[{"chunkIndex":0,"vector":[1,0]}],` +
		`"embeddingsContent":[{"chunkIndex":0,"vector":[0,1]}]}`

	dec := NewDecoder(strings.NewReader(input))

	// When: decoding
	doc, err := dec.Next()
	require.NoError(t, err)

	// Then: chunk/embedding structure survives
	assert.Equal(t, []string{"t"}, doc.ChunksTitle)
	require.Len(t, doc.EmbeddingsTitle, 1)
	assert.Equal(t, 0, doc.EmbeddingsTitle[0].ChunkIndex)
	assert.Equal(t, []float32{1, 0}, doc.EmbeddingsTitle[0].Vector)
	assert.Equal(t, []float32{0, 1}, doc.EmbeddingsContent[0].Vector)
}

func TestDecoder_TracksLineNumbers(t *testing.T) {
	input := "{\"docId\":\"d1\"}\n\n{\"docId\":\"d2\"}\n"
	dec := NewDecoder(strings.NewReader(input))

	_, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, dec.Line())

	_, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 3, dec.Line())
}
