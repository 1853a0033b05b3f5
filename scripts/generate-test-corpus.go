//go:build ignore

// Package main generates a synthetic JSONL document feed for load
// testing the ingest and search paths.
// Usage: go run scripts/generate-test-corpus.go -docs 10000 -dims 384 -output testdata/corpus.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numDocs   = flag.Int("docs", 10000, "Number of documents to generate")
	dims      = flag.Int("dims", 384, "Embedding dimensions")
	maxChunks = flag.Int("max-chunks", 6, "Maximum content chunks per document")
	output    = flag.String("output", "testdata/corpus.jsonl", "Output file")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Vocabulary for title/content generation. Small on purpose: repeated
// terms give BM25 a realistic df spread.
var topics = []string{
	"solar", "wind", "hydro", "geothermal", "nuclear", "battery",
	"turbine", "panel", "grid", "storage", "efficiency", "inverter",
	"transmission", "generation", "capacity", "renewable", "carbon",
	"emission", "policy", "subsidy", "market", "forecast",
}

var verbs = []string{
	"improves", "reduces", "converts", "stores", "delivers",
	"measures", "predicts", "stabilizes", "scales", "degrades",
}

type chunkEmbedding struct {
	ChunkIndex int       `json:"chunkIndex"`
	Vector     []float32 `json:"vector"`
}

type doc struct {
	DocID             string           `json:"docId"`
	URL               string           `json:"url"`
	Domain            string           `json:"domain"`
	Title             string           `json:"title"`
	Content           string           `json:"content"`
	DocDate           string           `json:"docDate"`
	ChunksTitle       []string         `json:"chunksTitle"`
	ChunksContent     []string         `json:"chunksContent"`
	EmbeddingsTitle   []chunkEmbedding `json:"embeddingsTitle"`
	EmbeddingsContent []chunkEmbedding `json:"embeddingsContent"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := run(rng); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(rng *rand.Rand) error {
	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		return err
	}
	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(w)

	for i := 0; i < *numDocs; i++ {
		if err := enc.Encode(makeDoc(rng, i)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("wrote %d documents (%d dims) to %s\n", *numDocs, *dims, *output)
	return nil
}

func makeDoc(rng *rand.Rand, i int) doc {
	title := sentence(rng, 3)
	nChunks := 1 + rng.Intn(*maxChunks)

	chunks := make([]string, nChunks)
	for c := range chunks {
		chunks[c] = sentence(rng, 8+rng.Intn(12))
	}

	d := doc{
		DocID:         fmt.Sprintf("doc-%06d", i),
		URL:           fmt.Sprintf("https://example.org/articles/%06d", i),
		Domain:        "example.org",
		Title:         title,
		Content:       strings.Join(chunks, " "),
		DocDate:       fmt.Sprintf("2025-%02d-%02d", 1+rng.Intn(12), 1+rng.Intn(28)),
		ChunksTitle:   []string{title},
		ChunksContent: chunks,
		EmbeddingsTitle: []chunkEmbedding{
			{ChunkIndex: 0, Vector: randomUnitVector(rng)},
		},
	}
	for c := range chunks {
		d.EmbeddingsContent = append(d.EmbeddingsContent,
			chunkEmbedding{ChunkIndex: c, Vector: randomUnitVector(rng)})
	}
	return d
}

func sentence(rng *rand.Rand, words int) string {
	parts := make([]string, 0, words)
	for w := 0; w < words; w++ {
		if w%3 == 1 {
			parts = append(parts, verbs[rng.Intn(len(verbs))])
		} else {
			parts = append(parts, topics[rng.Intn(len(topics))])
		}
	}
	return strings.Join(parts, " ")
}

// randomUnitVector draws from a gaussian and normalizes, so cosine and
// dot product agree the way real embedding models behave.
func randomUnitVector(rng *rand.Rand) []float32 {
	v := make([]float32, *dims)
	var norm float64
	for i := range v {
		x := rng.NormFloat64()
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
