package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chunkdex/internal/document"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
	"github.com/Aman-CERP/chunkdex/internal/textindex"
	"github.com/Aman-CERP/chunkdex/internal/vectorindex"
)

// The evaluator scores through these two surfaces; the real indexes must
// keep satisfying them.
var (
	_ TextScorer   = (*textindex.Index)(nil)
	_ VectorScorer = (*vectorindex.Index)(nil)
)

func unitVec(vals ...float32) []float32 {
	var sum float64
	for _, v := range vals {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = v / norm
	}
	return out
}

func bothFields() []document.Field {
	return document.TextFields()
}

// fixture: d1 matches "cat" in both text fields and carries vectors in both
// vector fields; d2 is lexical-content + vector-title only; d3 is text only.
func newFixture(t *testing.T) (*Evaluator, *textindex.Index, *vectorindex.Index) {
	t.Helper()

	ti := textindex.New(textindex.DefaultConfig())
	ti.Index("d1", document.FieldTitle, "cat dog")
	ti.Index("d1", document.FieldContent, "the cat sat")
	ti.Index("d2", document.FieldContent, "dog park")
	ti.Index("d3", document.FieldContent, "quiet meadow")

	vi := vectorindex.New(vectorindex.Config{Dimensions: 4, Seed: 1})
	require.NoError(t, vi.Insert("d1", document.FieldTitle, 0, unitVec(1, 0, 0, 0)))
	require.NoError(t, vi.Insert("d1", document.FieldContent, 0, unitVec(0, 1, 0, 0)))
	require.NoError(t, vi.Insert("d1", document.FieldContent, 1, unitVec(0, 0.9, 0.1, 0)))
	require.NoError(t, vi.Insert("d2", document.FieldTitle, 0, unitVec(0, 0, 1, 0)))

	return NewEvaluator(ti, vi), ti, vi
}

func TestParseProfile(t *testing.T) {
	for _, name := range []string{"bm25", "embedding_similarity"} {
		p, err := ParseProfile(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
	}
}

func TestParseProfile_Unknown(t *testing.T) {
	_, err := ParseProfile("hybrid")

	require.Error(t, err)
	assert.True(t, cdxerrors.IsValidation(err))
	assert.Equal(t, cdxerrors.ErrCodeUnknownProfile, cdxerrors.GetCode(err))
	assert.Contains(t, err.Error(), `"hybrid"`)
	assert.Contains(t, err.Error(), "bm25")
}

func TestProfileRequirements(t *testing.T) {
	assert.True(t, ProfileBM25.RequiresQueryText())
	assert.False(t, ProfileBM25.RequiresEmbedding())
	assert.False(t, ProfileEmbeddingSimilarity.RequiresQueryText())
	assert.True(t, ProfileEmbeddingSimilarity.RequiresEmbedding())

	assert.Equal(t, []Profile{ProfileBM25, ProfileEmbeddingSimilarity}, Profiles())
}

func TestEvaluateBM25_SumsFieldScores(t *testing.T) {
	e, ti, _ := newFixture(t)
	in := Inputs{Fields: bothFields(), Terms: []string{"cat"}}

	ranked, ok := e.Evaluate(ProfileBM25, in, "d1")

	require.True(t, ok)
	assert.Equal(t, "d1", ranked.DocID)
	want := ti.Score(document.FieldTitle, "d1", in.Terms) +
		ti.Score(document.FieldContent, "d1", in.Terms)
	assert.Greater(t, want, 0.0)
	assert.InDelta(t, want, ranked.Score, 1e-12)

	require.NotNil(t, ranked.Features)
	assert.Equal(t, []string{"cat"}, ranked.Features.MatchedTerms[document.FieldTitle])
	assert.Equal(t, []string{"cat"}, ranked.Features.MatchedTerms[document.FieldContent])
}

func TestEvaluateBM25_FieldSubset(t *testing.T) {
	e, ti, _ := newFixture(t)

	// "sat" only occurs in content; restricting to title drops the doc.
	_, ok := e.Evaluate(ProfileBM25, Inputs{Fields: []document.Field{document.FieldTitle}, Terms: []string{"sat"}}, "d1")
	assert.False(t, ok)

	ranked, ok := e.Evaluate(ProfileBM25, Inputs{Fields: []document.Field{document.FieldTitle}, Terms: []string{"cat"}}, "d1")
	require.True(t, ok)
	assert.InDelta(t, ti.Score(document.FieldTitle, "d1", []string{"cat"}), ranked.Score, 1e-12)
	assert.NotContains(t, ranked.Features.MatchedTerms, document.FieldContent)
}

func TestEvaluateBM25_NonMatchingDocDrops(t *testing.T) {
	e, _, _ := newFixture(t)

	_, ok := e.Evaluate(ProfileBM25, Inputs{Fields: bothFields(), Terms: []string{"cat"}}, "ghost")
	assert.False(t, ok)

	// Indexed but lexically unrelated to the query.
	_, ok = e.Evaluate(ProfileBM25, Inputs{Fields: bothFields(), Terms: []string{"cat"}}, "d3")
	assert.False(t, ok)
}

func TestEvaluateEmbedding_TakesMaxAcrossFields(t *testing.T) {
	e, _, _ := newFixture(t)
	in := Inputs{Fields: bothFields(), Embedding: unitVec(1, 0, 0, 0)}

	ranked, ok := e.Evaluate(ProfileEmbeddingSimilarity, in, "d1")

	require.True(t, ok)
	assert.InDelta(t, 1.0, ranked.Score, 1e-6)
	require.NotNil(t, ranked.Features)
	assert.Equal(t, document.FieldTitle, ranked.Features.BestField)

	title, found := ranked.Features.ClosestChunk[document.FieldTitle]
	require.True(t, found)
	assert.Equal(t, 0, title.ChunkIndex)
	assert.InDelta(t, 1.0, title.Closeness, 1e-6)

	// The content field matched nothing relevant but still reports its
	// closest chunk; both content chunks dot to zero, so the lower index wins.
	content, found := ranked.Features.ClosestChunk[document.FieldContent]
	require.True(t, found)
	assert.Equal(t, 0, content.ChunkIndex)
	assert.InDelta(t, 0.0, content.Closeness, 1e-6)
}

func TestEvaluateEmbedding_BestFieldContent(t *testing.T) {
	e, _, _ := newFixture(t)
	in := Inputs{Fields: bothFields(), Embedding: unitVec(0, 1, 0, 0)}

	ranked, ok := e.Evaluate(ProfileEmbeddingSimilarity, in, "d1")

	require.True(t, ok)
	assert.Equal(t, document.FieldContent, ranked.Features.BestField)
	assert.Equal(t, 0, ranked.Features.ClosestChunk[document.FieldContent].ChunkIndex)
	assert.InDelta(t, 1.0, ranked.Score, 1e-6)
}

func TestEvaluateEmbedding_NoVectorsDrops(t *testing.T) {
	e, _, _ := newFixture(t)
	in := Inputs{Fields: bothFields(), Embedding: unitVec(1, 0, 0, 0)}

	// d3 has text but no vectors in either field.
	_, ok := e.Evaluate(ProfileEmbeddingSimilarity, in, "d3")
	assert.False(t, ok)

	// d2 has a title vector only; a content-restricted query cannot score it.
	_, ok = e.Evaluate(ProfileEmbeddingSimilarity,
		Inputs{Fields: []document.Field{document.FieldContent}, Embedding: unitVec(1, 0, 0, 0)}, "d2")
	assert.False(t, ok)
}

func TestEvaluateEmbedding_FieldTieKeepsCanonicalOrder(t *testing.T) {
	e, _, vi := newFixture(t)
	same := unitVec(0, 0, 0, 1)
	require.NoError(t, vi.Insert("tie", document.FieldTitle, 0, same))
	require.NoError(t, vi.Insert("tie", document.FieldContent, 0, same))

	ranked, ok := e.Evaluate(ProfileEmbeddingSimilarity, Inputs{Fields: bothFields(), Embedding: same}, "tie")

	require.True(t, ok)
	assert.Equal(t, document.FieldTitle, ranked.Features.BestField)
	assert.Len(t, ranked.Features.ClosestChunk, 2)
}

func TestEvaluate_UnknownProfileDrops(t *testing.T) {
	e, _, _ := newFixture(t)
	_, ok := e.Evaluate(Profile("nope"), Inputs{Fields: bothFields()}, "d1")
	assert.False(t, ok)
}

func TestSort_ScoreDescendingThenDocID(t *testing.T) {
	results := []Ranked{
		{DocID: "b", Score: 2},
		{DocID: "a", Score: 2},
		{DocID: "c", Score: 5},
		{DocID: "d", Score: 0.5},
	}

	Sort(results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids)
}

func TestEvaluateAndSort_IdenticalDocsTieAscending(t *testing.T) {
	// Two lexically identical documents score identically; the final order
	// must fall back to ascending docID.
	ti := textindex.New(textindex.DefaultConfig())
	ti.Index("zz", document.FieldContent, "cat")
	ti.Index("aa", document.FieldContent, "cat")
	e := NewEvaluator(ti, vectorindex.New(vectorindex.Config{Dimensions: 4}))

	in := Inputs{Fields: bothFields(), Terms: []string{"cat"}}
	var results []Ranked
	for _, id := range []string{"zz", "aa"} {
		r, ok := e.Evaluate(ProfileBM25, in, id)
		require.True(t, ok)
		results = append(results, r)
	}

	Sort(results)

	assert.Equal(t, "aa", results[0].DocID)
	assert.Equal(t, "zz", results[1].DocID)
	assert.Equal(t, results[0].Score, results[1].Score)
}
