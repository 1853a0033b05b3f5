// Package rank scores query candidates under a named profile. Profiles are
// pure functions from per-document index signals to one scalar; the executor
// supplies candidates and this package orders them.
package rank

import (
	"sort"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/vectorindex"
)

// TextScorer is the point-evaluation surface of the lexical index.
type TextScorer interface {
	// Score returns the summed BM25 contribution of terms for one document
	// and field.
	Score(field document.Field, docID string, terms []string) float64

	// MatchedTerms reports which of the terms occur in the document's field.
	MatchedTerms(field document.Field, docID string, terms []string) []string
}

// VectorScorer is the exact rescoring surface of the vector index.
type VectorScorer interface {
	// BestChunk returns the document's closest chunk to the query in one
	// field, scored exactly over its registered vectors.
	BestChunk(docID string, field document.Field, query []float32) (vectorindex.Hit, bool)
}

// ChunkFeature identifies one field's closest chunk and its closeness.
type ChunkFeature struct {
	ChunkIndex int     `json:"chunkIndex"`
	Closeness  float64 `json:"closeness"`
}

// MatchFeatures is the auxiliary per-result output consumers use to explain
// or highlight a match. Which parts are populated depends on the profile.
type MatchFeatures struct {
	// ClosestChunk maps each vector field that matched to its best chunk.
	ClosestChunk map[document.Field]ChunkFeature `json:"closestChunk,omitempty"`

	// BestField is the field whose chunk produced the document score.
	BestField document.Field `json:"bestField,omitempty"`

	// MatchedTerms lists, per text field, the query terms present in it.
	MatchedTerms map[document.Field][]string `json:"matchedTerms,omitempty"`
}

// Ranked is one scored candidate.
type Ranked struct {
	DocID    string
	Score    float64
	Features *MatchFeatures
}

// Inputs carries the per-query signals shared by every candidate. Fields is
// the validated fieldset in canonical order; Terms the deduplicated query
// terms for lexical profiles; Embedding the query vector for vector profiles.
type Inputs struct {
	Fields    []document.Field
	Terms     []string
	Embedding []float32
}

// Evaluator dispatches candidate scoring to the index behind each profile.
type Evaluator struct {
	text   TextScorer
	vector VectorScorer
}

func NewEvaluator(text TextScorer, vector VectorScorer) *Evaluator {
	return &Evaluator{text: text, vector: vector}
}

// Evaluate scores one candidate under the profile. ok is false when the
// document no longer qualifies (every signal gone, e.g. retracted between
// candidate generation and scoring); such documents drop out of the result
// set instead of surfacing with a zero score.
func (e *Evaluator) Evaluate(profile Profile, in Inputs, docID string) (Ranked, bool) {
	switch profile {
	case ProfileBM25:
		return e.evaluateBM25(in, docID)
	case ProfileEmbeddingSimilarity:
		return e.evaluateEmbedding(in, docID)
	default:
		return Ranked{}, false
	}
}

func (e *Evaluator) evaluateBM25(in Inputs, docID string) (Ranked, bool) {
	var score float64
	matched := make(map[document.Field][]string, len(in.Fields))
	for _, field := range in.Fields {
		score += e.text.Score(field, docID, in.Terms)
		if terms := e.text.MatchedTerms(field, docID, in.Terms); len(terms) > 0 {
			matched[field] = terms
		}
	}
	if score <= 0 {
		return Ranked{}, false
	}
	return Ranked{DocID: docID, Score: score, Features: &MatchFeatures{MatchedTerms: matched}}, true
}

func (e *Evaluator) evaluateEmbedding(in Inputs, docID string) (Ranked, bool) {
	closest := make(map[document.Field]ChunkFeature, len(in.Fields))
	var (
		best      float64
		bestField document.Field
		found     bool
	)
	for _, field := range in.Fields {
		hit, ok := e.vector.BestChunk(docID, field, in.Embedding)
		if !ok {
			continue
		}
		closest[field] = ChunkFeature{ChunkIndex: hit.ChunkIndex, Closeness: hit.Closeness}
		// Strict comparison keeps the earlier field on equal closeness, so
		// BestField is deterministic for the canonical field order.
		if !found || hit.Closeness > best {
			best = hit.Closeness
			bestField = field
			found = true
		}
	}
	if !found {
		return Ranked{}, false
	}
	return Ranked{
		DocID: docID,
		Score: best,
		Features: &MatchFeatures{
			ClosestChunk: closest,
			BestField:    bestField,
		},
	}, true
}

// Sort orders results by score descending, ties by ascending docID.
func Sort(results []Ranked) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
}
