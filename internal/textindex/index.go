// Package textindex maintains per-field inverted indexes with BM25
// scoring over the title and content fields.
//
// The index is derived state: the engine rebuilds it from the document
// store on open, so nothing here touches disk. Each field gets its own
// postings table and lock, which lets writes to one field proceed while
// the other is being read.
package textindex

import (
	"math"
	"sort"
	"sync"

	"github.com/Aman-CERP/chunkdex/internal/document"
)

// Config tunes tokenization and BM25 scoring.
type Config struct {
	// K1 controls term-frequency saturation.
	K1 float64

	// B controls document-length normalization, 0 (off) to 1 (full).
	B float64

	// MinTokenLength drops shorter tokens when > 1.
	MinTokenLength int

	// StopWords are dropped during analysis. Empty means keep everything.
	StopWords []string
}

// DefaultConfig returns the standard BM25 parameters.
func DefaultConfig() Config {
	return Config{
		K1:             1.2,
		B:              0.75,
		MinTokenLength: 1,
	}
}

// FieldStats describes one field's index.
type FieldStats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	Postings     int     `json:"postings"`
	AvgDocLength float64 `json:"avgDocLength"`
}

// fieldIndex holds one field's postings under its own lock.
type fieldIndex struct {
	mu sync.RWMutex

	// postings maps term → docID → term frequency. Document frequency is
	// the size of a term's inner map.
	postings map[string]map[string]int

	// docTerms maps docID → the distinct terms it contributed, so retract
	// does not have to sweep the whole vocabulary.
	docTerms map[string][]string

	// docLength maps docID → token count; totalLength is their sum, kept
	// incrementally for the average length in BM25's normalizer.
	docLength   map[string]int
	totalLength int
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{
		postings:  make(map[string]map[string]int),
		docTerms:  make(map[string][]string),
		docLength: make(map[string]int),
	}
}

// Index is the inverted text index over the searchable fields.
type Index struct {
	k1       float64
	b        float64
	analyzer *Analyzer
	fields   map[document.Field]*fieldIndex
}

// New creates an empty index for all searchable fields.
func New(cfg Config) *Index {
	fields := make(map[document.Field]*fieldIndex, len(document.TextFields()))
	for _, field := range document.TextFields() {
		fields[field] = newFieldIndex()
	}
	return &Index{
		k1:       cfg.K1,
		b:        cfg.B,
		analyzer: NewAnalyzer(cfg.MinTokenLength, cfg.StopWords),
		fields:   fields,
	}
}

// Analyzer exposes the shared analysis chain so queries tokenize exactly
// like documents.
func (ix *Index) Analyzer() *Analyzer {
	return ix.analyzer
}

// Index tokenizes text and records postings for (docID, field), replacing
// whatever that document previously contributed to the field. Indexing the
// same document twice therefore leaves the same postings as indexing it
// once.
func (ix *Index) Index(docID string, field document.Field, text string) {
	fi := ix.fields[field]
	if fi == nil {
		return
	}
	tokens := ix.analyzer.Tokens(text)

	fi.mu.Lock()
	defer fi.mu.Unlock()

	fi.retractLocked(docID)

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	terms := make([]string, 0, len(counts))
	for term, tf := range counts {
		bucket := fi.postings[term]
		if bucket == nil {
			bucket = make(map[string]int)
			fi.postings[term] = bucket
		}
		bucket[docID] = tf
		terms = append(terms, term)
	}
	fi.docTerms[docID] = terms
	fi.docLength[docID] = len(tokens)
	fi.totalLength += len(tokens)
}

// Retract removes every posting (docID, field) contributed. Retracting a
// document that was never indexed is a no-op.
func (ix *Index) Retract(docID string, field document.Field) {
	fi := ix.fields[field]
	if fi == nil {
		return
	}
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.retractLocked(docID)
}

func (fi *fieldIndex) retractLocked(docID string) {
	terms, ok := fi.docTerms[docID]
	if !ok {
		return
	}
	for _, term := range terms {
		bucket := fi.postings[term]
		delete(bucket, docID)
		if len(bucket) == 0 {
			delete(fi.postings, term)
		}
	}
	delete(fi.docTerms, docID)
	fi.totalLength -= fi.docLength[docID]
	delete(fi.docLength, docID)
}

// TermScore returns the BM25 partial score of one term for (docID, field).
// A term absent from the document scores 0.
func (ix *Index) TermScore(field document.Field, term, docID string) float64 {
	fi := ix.fields[field]
	if fi == nil {
		return 0
	}
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.termScoreLocked(term, docID, ix.k1, ix.b)
}

// Score returns bm25(field) for the document: the sum of partial scores
// over the given terms. Callers pass distinct terms (QueryTerms yields
// them); duplicates would be counted twice.
func (ix *Index) Score(field document.Field, docID string, terms []string) float64 {
	fi := ix.fields[field]
	if fi == nil {
		return 0
	}
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	var sum float64
	for _, term := range terms {
		sum += fi.termScoreLocked(term, docID, ix.k1, ix.b)
	}
	return sum
}

func (fi *fieldIndex) termScoreLocked(term, docID string, k1, b float64) float64 {
	bucket := fi.postings[term]
	tf := bucket[docID]
	if tf == 0 {
		return 0
	}

	n := float64(len(fi.docLength))
	df := float64(len(bucket))
	idf := math.Log(1 + (n-df+0.5)/(df+0.5))

	// tf > 0 implies a non-empty document and field, so the averages below
	// are well defined.
	dl := float64(fi.docLength[docID])
	avgdl := float64(fi.totalLength) / n

	tff := float64(tf)
	return idf * tff * (k1 + 1) / (tff + k1*(1-b+b*dl/avgdl))
}

// Candidates returns every docID holding at least one of the terms in the
// field, ascending by docID. OR semantics: one matching term suffices.
func (ix *Index) Candidates(field document.Field, terms []string) []string {
	fi := ix.fields[field]
	if fi == nil {
		return nil
	}
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	set := make(map[string]struct{})
	for _, term := range terms {
		for docID := range fi.postings[term] {
			set[docID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for docID := range set {
		ids = append(ids, docID)
	}
	sort.Strings(ids)
	return ids
}

// MatchedTerms returns the subset of terms present in (docID, field),
// in the order given.
func (ix *Index) MatchedTerms(field document.Field, docID string, terms []string) []string {
	fi := ix.fields[field]
	if fi == nil {
		return nil
	}
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	matched := make([]string, 0, len(terms))
	for _, term := range terms {
		if fi.postings[term][docID] > 0 {
			matched = append(matched, term)
		}
	}
	return matched
}

// Stats reports per-field index statistics.
func (ix *Index) Stats() map[document.Field]FieldStats {
	stats := make(map[document.Field]FieldStats, len(ix.fields))
	for field, fi := range ix.fields {
		fi.mu.RLock()
		fs := FieldStats{
			Documents: len(fi.docLength),
			Terms:     len(fi.postings),
		}
		for _, bucket := range fi.postings {
			fs.Postings += len(bucket)
		}
		if fs.Documents > 0 {
			fs.AvgDocLength = float64(fi.totalLength) / float64(fs.Documents)
		}
		fi.mu.RUnlock()
		stats[field] = fs
	}
	return stats
}
