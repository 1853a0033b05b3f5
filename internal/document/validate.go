package document

import (
	"fmt"
	"strconv"

	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

// Validate checks the document against the chunk/embedding integrity
// rules before any index is touched. dims is the embedding width the
// index was configured with; every supplied vector must match it.
//
// A failure here rejects the document whole: callers must not apply any
// part of an invalid document to the store or the indexes.
func (d *Document) Validate(dims int) error {
	if d.DocID == "" {
		return cdxerrors.New(cdxerrors.ErrCodeInvalidDocID,
			"document id must not be empty", nil)
	}

	for _, field := range TextFields() {
		if err := validateField(d.DocID, field, d.ChunksOf(field), d.EmbeddingsOf(field), dims); err != nil {
			return err
		}
	}

	return nil
}

// validateField enforces, for one field:
//   - len(chunks) == len(embeddings)
//   - each chunkIndex in [0, len(chunks)) with no duplicates
//   - each vector exactly dims wide
func validateField(docID string, field Field, chunks []string, embeddings []ChunkEmbedding, dims int) error {
	if len(chunks) != len(embeddings) {
		return cdxerrors.IntegrityError(
			fmt.Sprintf("field %s has %d chunks but %d embeddings", field, len(chunks), len(embeddings)), nil).
			WithDetail("docId", docID).
			WithDetail("field", string(field)).
			WithDetail("chunks", strconv.Itoa(len(chunks))).
			WithDetail("embeddings", strconv.Itoa(len(embeddings)))
	}

	seen := make(map[int]bool, len(embeddings))
	for _, e := range embeddings {
		if e.ChunkIndex < 0 || e.ChunkIndex >= len(chunks) {
			return cdxerrors.New(cdxerrors.ErrCodeChunkIndexRange,
				fmt.Sprintf("field %s chunk index %d out of range [0,%d)", field, e.ChunkIndex, len(chunks)), nil).
				WithDetail("docId", docID).
				WithDetail("field", string(field))
		}
		if seen[e.ChunkIndex] {
			return cdxerrors.New(cdxerrors.ErrCodeDuplicateChunkIndex,
				fmt.Sprintf("field %s chunk index %d appears twice", field, e.ChunkIndex), nil).
				WithDetail("docId", docID).
				WithDetail("field", string(field))
		}
		seen[e.ChunkIndex] = true

		if len(e.Vector) != dims {
			return cdxerrors.New(cdxerrors.ErrCodeBadChunkVector,
				fmt.Sprintf("field %s chunk %d vector has %d dimensions, index requires %d",
					field, e.ChunkIndex, len(e.Vector), dims), nil).
				WithDetail("docId", docID).
				WithDetail("field", string(field)).
				WithDetail("expected", strconv.Itoa(dims)).
				WithDetail("got", strconv.Itoa(len(e.Vector)))
		}
	}

	return nil
}

// ParseField resolves a user-supplied field name.
func ParseField(name string) (Field, error) {
	switch Field(name) {
	case FieldTitle:
		return FieldTitle, nil
	case FieldContent:
		return FieldContent, nil
	default:
		return "", cdxerrors.New(cdxerrors.ErrCodeUnsupportedField,
			fmt.Sprintf("unsupported field %q (valid: title, content)", name), nil)
	}
}
