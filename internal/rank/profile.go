package rank

import (
	"fmt"

	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
)

// Profile names a fixed scoring formula selectable per query. The set is
// closed; evaluation dispatches on the value rather than through a plugin
// registry.
type Profile string

const (
	// ProfileBM25 sums the BM25 scores of the queried text fields.
	ProfileBM25 Profile = "bm25"

	// ProfileEmbeddingSimilarity scores a document by the closeness of its
	// best chunk across the queried vector fields.
	ProfileEmbeddingSimilarity Profile = "embedding_similarity"
)

// Profiles returns the valid profile names in display order.
func Profiles() []Profile {
	return []Profile{ProfileBM25, ProfileEmbeddingSimilarity}
}

// ParseProfile validates a profile name from a query or config. Unknown
// names are rejected outright; falling back to a default here would mask
// client bugs.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(s); p {
	case ProfileBM25, ProfileEmbeddingSimilarity:
		return p, nil
	default:
		return "", cdxerrors.New(cdxerrors.ErrCodeUnknownProfile,
			fmt.Sprintf("unknown rank profile %q (valid: %s, %s)", s, ProfileBM25, ProfileEmbeddingSimilarity), nil)
	}
}

func (p Profile) String() string {
	return string(p)
}

// RequiresQueryText reports whether the profile needs tokenizable query text.
func (p Profile) RequiresQueryText() bool {
	return p == ProfileBM25
}

// RequiresEmbedding reports whether the profile needs a query vector.
func (p Profile) RequiresEmbedding() bool {
	return p == ProfileEmbeddingSimilarity
}
