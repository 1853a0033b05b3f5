// Package retrieval is the embeddable entry point to the chunkdex
// engine for Go programs that do not want the CLI or the MCP server.
//
// An Index combines a document store with two derived indexes that are
// kept in lockstep: a BM25 inverted index over the text fields and an
// HNSW graph over the per-chunk embeddings. Both rank profiles query
// the same document set.
//
// Basic usage:
//
//	idx, err := retrieval.Open(ctx,
//	    retrieval.WithDataDir(".chunkdex"),
//	    retrieval.WithDimensions(384),
//	)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	_, err = idx.Put(ctx, &retrieval.Document{
//	    DocID:         "article-1",
//	    Title:         "Solar panels",
//	    ChunksTitle:   []string{"Solar panels"},
//	    ChunksContent: []string{},
//	})
//
//	resp, err := idx.Search(ctx, retrieval.Query{Text: "solar"})
//
// For throwaway indexes (tests, one-shot pipelines) use WithInMemory
// instead of WithDataDir.
package retrieval
