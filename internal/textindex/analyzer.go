package textindex

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// Analyzer turns field text into index terms.
//
// The chain is bleve's unicode word segmenter followed by lowercasing,
// then optional minimum-length and stop-word filters. Documents and
// queries share one analyzer instance, which is what keeps token identity
// stable between ingestion and search.
type Analyzer struct {
	chain *analysis.DefaultAnalyzer
}

// NewAnalyzer builds the analysis chain. minTokenLength <= 1 and an empty
// stopWords list leave the corresponding filters out.
func NewAnalyzer(minTokenLength int, stopWords []string) *Analyzer {
	filters := []analysis.TokenFilter{
		lowercase.NewLowerCaseFilter(),
	}
	if minTokenLength > 1 {
		filters = append(filters, length.NewLengthFilter(minTokenLength, 0))
	}
	if len(stopWords) > 0 {
		stopMap := analysis.NewTokenMap()
		for _, word := range stopWords {
			stopMap.AddToken(strings.ToLower(word))
		}
		filters = append(filters, stop.NewStopTokensFilter(stopMap))
	}

	return &Analyzer{
		chain: &analysis.DefaultAnalyzer{
			Tokenizer:    unicode.NewUnicodeTokenizer(),
			TokenFilters: filters,
		},
	}
}

// Tokens returns the term sequence for text, duplicates included. Term
// frequency counting depends on the duplicates.
func (a *Analyzer) Tokens(text string) []string {
	stream := a.chain.Analyze([]byte(text))
	tokens := make([]string, 0, len(stream))
	for _, tok := range stream {
		tokens = append(tokens, string(tok.Term))
	}
	return tokens
}

// QueryTerms tokenizes query text and deduplicates, preserving first-seen
// order. Each distinct term contributes once to scoring and candidates.
func (a *Analyzer) QueryTerms(text string) []string {
	tokens := a.Tokens(text)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}
