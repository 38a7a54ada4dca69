package model

import "github.com/google/uuid"

// PairKey returns the direction-normalized key for two user IDs: the
// lexicographically smaller UUID first, joined with a colon. Both
// (a,b) and (b,a) map to the same key, which lets a single unique
// index enforce "at most one edge per unordered pair".
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return as + ":" + bs
}

// OrderPair returns the two IDs in canonical (lexicographic) order.
func OrderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
