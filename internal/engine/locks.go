package engine

import (
	"hash/fnv"
	"sync"
)

const defaultLockStripes = 64

// docLocks stripes per-document mutexes. A write to one document
// serializes against readers of that document; distinct documents usually
// land on distinct stripes and proceed in parallel.
type docLocks struct {
	stripes []sync.RWMutex
}

func newDocLocks(n int) *docLocks {
	if n <= 0 {
		n = defaultLockStripes
	}
	// Power-of-two size so the hash maps with a mask.
	size := 1
	for size < n {
		size <<= 1
	}
	return &docLocks{stripes: make([]sync.RWMutex, size)}
}

func (l *docLocks) of(docID string) *sync.RWMutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(docID))
	return &l.stripes[h.Sum32()&uint32(len(l.stripes)-1)]
}
