package textindex

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/chunkdex/internal/document"
)

func newTestIndex() *Index {
	return New(DefaultConfig())
}

func TestIndex_SingleDocumentScenario(t *testing.T) {
	// Given d1 with "cat" in both fields
	ix := newTestIndex()
	ix.Index("d1", document.FieldTitle, "cat dog")
	ix.Index("d1", document.FieldContent, "the cat sat")

	terms := ix.Analyzer().QueryTerms("cat")

	// When querying "cat", both fields yield d1 with positive scores
	assert.Equal(t, []string{"d1"}, ix.Candidates(document.FieldTitle, terms))
	assert.Equal(t, []string{"d1"}, ix.Candidates(document.FieldContent, terms))
	assert.Greater(t, ix.Score(document.FieldTitle, "d1", terms), 0.0)
	assert.Greater(t, ix.Score(document.FieldContent, "d1", terms), 0.0)

	// And a term in neither field yields nothing
	zebra := ix.Analyzer().QueryTerms("zebra")
	assert.Empty(t, ix.Candidates(document.FieldTitle, zebra))
	assert.Empty(t, ix.Candidates(document.FieldContent, zebra))
	assert.Zero(t, ix.Score(document.FieldTitle, "d1", zebra))
}

func TestTermScore_MatchesClosedForm(t *testing.T) {
	// One document, dl = avgdl = 2, tf = 1, df = 1, N = 1:
	// idf  = ln(1 + 0.5/1.5) = ln(4/3)
	// norm = 1*(k1+1) / (1 + k1*(1 - b + b*1)) = 2.2/2.2 = 1
	ix := newTestIndex()
	ix.Index("d1", document.FieldTitle, "cat dog")

	got := ix.TermScore(document.FieldTitle, "cat", "d1")

	assert.InDelta(t, math.Log(4.0/3.0), got, 1e-12)
}

func TestTermScore_MonotonicInTermFrequency(t *testing.T) {
	// Three documents of identical length so only tf varies; every document
	// contains "cat", keeping df and idf fixed across them.
	ix := newTestIndex()
	ix.Index("d1", document.FieldContent, "cat dog bird")
	ix.Index("d2", document.FieldContent, "cat cat dog")
	ix.Index("d3", document.FieldContent, "cat cat cat")

	s1 := ix.TermScore(document.FieldContent, "cat", "d1")
	s2 := ix.TermScore(document.FieldContent, "cat", "d2")
	s3 := ix.TermScore(document.FieldContent, "cat", "d3")

	assert.Greater(t, s1, 0.0)
	assert.Greater(t, s2, s1)
	assert.Greater(t, s3, s2)
}

func TestScore_LengthNormalizationPenalizesLongerDocuments(t *testing.T) {
	ix := newTestIndex()
	ix.Index("short", document.FieldContent, "cat")
	ix.Index("long", document.FieldContent, "cat filler filler filler filler")

	terms := []string{"cat"}
	assert.Greater(t,
		ix.Score(document.FieldContent, "short", terms),
		ix.Score(document.FieldContent, "long", terms))
}

func TestScore_RarerTermsScoreHigher(t *testing.T) {
	// "cat" appears in both documents, "dog" only in d1: for d1 the rarer
	// term must contribute more.
	ix := newTestIndex()
	ix.Index("d1", document.FieldContent, "cat dog")
	ix.Index("d2", document.FieldContent, "cat bird")

	assert.Greater(t,
		ix.TermScore(document.FieldContent, "dog", "d1"),
		ix.TermScore(document.FieldContent, "cat", "d1"))
}

func TestScore_SumsPartialScoresOverTerms(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldContent, "cat dog")
	ix.Index("d2", document.FieldContent, "cat bird")

	cat := ix.TermScore(document.FieldContent, "cat", "d1")
	dog := ix.TermScore(document.FieldContent, "dog", "d1")
	sum := ix.Score(document.FieldContent, "d1", []string{"cat", "dog"})

	assert.InDelta(t, cat+dog, sum, 1e-12)
}

func TestIndex_ReindexReplacesPostings(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldTitle, "old words here")

	ix.Index("d1", document.FieldTitle, "new words here")

	assert.Empty(t, ix.Candidates(document.FieldTitle, []string{"old"}))
	assert.Equal(t, []string{"d1"}, ix.Candidates(document.FieldTitle, []string{"new"}))

	stats := ix.Stats()[document.FieldTitle]
	assert.Equal(t, 1, stats.Documents)
	assert.InDelta(t, 3.0, stats.AvgDocLength, 1e-12)
}

func TestIndex_IndexingTwiceEqualsIndexingOnce(t *testing.T) {
	once := newTestIndex()
	once.Index("d1", document.FieldTitle, "cat dog")

	twice := newTestIndex()
	twice.Index("d1", document.FieldTitle, "cat dog")
	twice.Index("d1", document.FieldTitle, "cat dog")

	assert.Equal(t, once.Stats(), twice.Stats())
	assert.Equal(t,
		once.TermScore(document.FieldTitle, "cat", "d1"),
		twice.TermScore(document.FieldTitle, "cat", "d1"))
}

func TestRetract_RemovesOnlyThatDocument(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldContent, "cat dog")
	ix.Index("d2", document.FieldContent, "cat bird")

	ix.Retract("d1", document.FieldContent)

	assert.Equal(t, []string{"d2"}, ix.Candidates(document.FieldContent, []string{"cat"}))
	assert.Empty(t, ix.Candidates(document.FieldContent, []string{"dog"}))
	assert.Zero(t, ix.Score(document.FieldContent, "d1", []string{"cat"}))

	stats := ix.Stats()[document.FieldContent]
	assert.Equal(t, 1, stats.Documents)
}

func TestRetract_UnknownDocumentIsNoOp(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldTitle, "cat")

	ix.Retract("ghost", document.FieldTitle)

	assert.Equal(t, []string{"d1"}, ix.Candidates(document.FieldTitle, []string{"cat"}))
}

func TestRetract_IsFieldScoped(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldTitle, "cat")
	ix.Index("d1", document.FieldContent, "cat")

	ix.Retract("d1", document.FieldTitle)

	assert.Empty(t, ix.Candidates(document.FieldTitle, []string{"cat"}))
	assert.Equal(t, []string{"d1"}, ix.Candidates(document.FieldContent, []string{"cat"}))
}

func TestCandidates_UnionSemanticsAscendingOrder(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d3", document.FieldContent, "cat")
	ix.Index("d1", document.FieldContent, "dog")
	ix.Index("d2", document.FieldContent, "cat dog")
	ix.Index("d4", document.FieldContent, "bird")

	// OR semantics: any matching term is enough; unknown terms are ignored.
	got := ix.Candidates(document.FieldContent, []string{"cat", "dog", "zebra"})

	assert.Equal(t, []string{"d1", "d2", "d3"}, got)
}

func TestCandidates_UnknownFieldReturnsNothing(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldTitle, "cat")

	assert.Nil(t, ix.Candidates(document.Field("bogus"), []string{"cat"}))
}

func TestMatchedTerms(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldContent, "the cat sat")

	matched := ix.MatchedTerms(document.FieldContent, "d1", []string{"cat", "zebra", "sat"})

	assert.Equal(t, []string{"cat", "sat"}, matched)
}

func TestIndex_EmptyTextCountsDocumentButMatchesNothing(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldTitle, "")

	stats := ix.Stats()[document.FieldTitle]
	assert.Equal(t, 1, stats.Documents)
	assert.Zero(t, stats.Terms)
	assert.Empty(t, ix.Candidates(document.FieldTitle, []string{"cat"}))
}

func TestStats_CountsTermsAndPostings(t *testing.T) {
	ix := newTestIndex()
	ix.Index("d1", document.FieldContent, "cat dog")
	ix.Index("d2", document.FieldContent, "cat bird bird")

	stats := ix.Stats()[document.FieldContent]

	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Terms)    // cat, dog, bird
	assert.Equal(t, 4, stats.Postings) // cat×2, dog×1, bird×1
	assert.InDelta(t, 2.5, stats.AvgDocLength, 1e-12)
}

func TestIndex_StopWordsNeverMatch(t *testing.T) {
	ix := New(Config{K1: 1.2, B: 0.75, MinTokenLength: 1, StopWords: []string{"the"}})
	ix.Index("d1", document.FieldContent, "the cat sat")

	terms := ix.Analyzer().QueryTerms("the")
	assert.Empty(t, terms)
	assert.Empty(t, ix.Candidates(document.FieldContent, []string{"the"}))
}

func TestIndex_ConcurrentWritersAndReaders(t *testing.T) {
	ix := newTestIndex()
	const (
		writers    = 4
		docsPerOne = 50
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < docsPerOne; i++ {
				id := fmt.Sprintf("w%d-d%d", w, i)
				ix.Index(id, document.FieldContent, "cat dog bird")
				if i%3 == 0 {
					ix.Retract(id, document.FieldContent)
				}
			}
		}(w)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ix.Candidates(document.FieldContent, []string{"cat"})
				ix.Score(document.FieldContent, "w0-d1", []string{"cat"})
			}
		}()
	}
	wg.Wait()

	want := writers * (docsPerOne - (docsPerOne+2)/3)
	assert.Equal(t, want, ix.Stats()[document.FieldContent].Documents)
}

func BenchmarkScore(b *testing.B) {
	ix := newTestIndex()
	for i := 0; i < 1000; i++ {
		ix.Index(fmt.Sprintf("d%04d", i), document.FieldContent, "the quick brown fox jumps over the lazy dog")
	}
	terms := []string{"quick", "lazy", "fox"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Score(document.FieldContent, "d0500", terms)
	}
}

func BenchmarkCandidates(b *testing.B) {
	ix := newTestIndex()
	for i := 0; i < 1000; i++ {
		ix.Index(fmt.Sprintf("d%04d", i), document.FieldContent, "the quick brown fox jumps over the lazy dog")
	}
	terms := []string{"quick", "lazy"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Candidates(document.FieldContent, terms)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 1.2, cfg.K1)
	require.Equal(t, 0.75, cfg.B)
	require.Equal(t, 1, cfg.MinTokenLength)
	require.Empty(t, cfg.StopWords)
}
