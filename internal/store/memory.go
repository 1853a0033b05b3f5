package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Aman-CERP/chunkdex/internal/document"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

// MemoryStore keeps documents in process memory. It backs ephemeral
// indexes and most tests; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*document.Document
	closed bool
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*document.Document)}
}

// Put stores a private copy of doc and returns the prior version.
func (s *MemoryStore) Put(ctx context.Context, doc *document.Document) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, cdxerrors.StorageError("document store is closed", nil)
	}

	previous := s.docs[doc.DocID]
	s.docs[doc.DocID] = doc.Clone()
	// previous was cloned on the way in and is dropped from the map here,
	// so handing it out does not alias stored state.
	return previous, nil
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(ctx context.Context, docID string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cdxerrors.StorageError("document store is closed", nil)
	}

	doc, ok := s.docs[docID]
	if !ok {
		return nil, cdxerrors.NotFoundError(docID)
	}
	return doc.Clone(), nil
}

// Delete removes docID and returns the removed document.
func (s *MemoryStore) Delete(ctx context.Context, docID string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, cdxerrors.StorageError("document store is closed", nil)
	}

	doc, ok := s.docs[docID]
	if !ok {
		return nil, cdxerrors.NotFoundError(docID)
	}
	delete(s.docs, docID)
	return doc, nil
}

// ForEach visits documents in ascending id order.
func (s *MemoryStore) ForEach(ctx context.Context, fn func(doc *document.Document) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return cdxerrors.StorageError("document store is closed", nil)
	}
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	snapshot := make([]*document.Document, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		snapshot = append(snapshot, s.docs[id].Clone())
	}
	s.mu.RUnlock()

	// fn runs outside the lock so it may call back into the store.
	for _, doc := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored documents.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, cdxerrors.StorageError("document store is closed", nil)
	}
	return len(s.docs), nil
}

// SizeBytes reports 0: the memory backend has no on-disk footprint.
func (s *MemoryStore) SizeBytes() (int64, error) {
	return 0, nil
}

// Close marks the store closed. Close is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.docs = nil
	return nil
}

// Verify interface implementation.
var _ DocumentStore = (*MemoryStore)(nil)
