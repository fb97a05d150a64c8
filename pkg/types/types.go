package types

// TextItem is one unit of text submitted for vectorization: a document
// chunk on the indexing path or a query fragment on the search path.
// The position of an item within its containing slice is significant and
// is preserved end to end through batching and dispatch.
//
// At most one boost kind is set per call site: DistanceBoost feeds dense
// embedding blending, WeightBoost feeds sparse weight blending.
type TextItem struct {
	Content       string
	DistanceBoost *DistancePhrase
	WeightBoost   *WeightPhrase
}

// DistancePhrase is auxiliary text whose dense embedding is blended
// additively into the base item's embedding, scaled by Factor.
type DistancePhrase struct {
	Phrase string
	Factor float32
}

// WeightPhrase is auxiliary text whose terms multiply the matching
// weights of the base item's sparse vector by Factor. Terms that only
// appear in the phrase are ignored: the phrase emphasizes, it does not
// inject.
type WeightPhrase struct {
	Phrase string
	Factor float64
}

// SparseEntry is one (token id, weight) pair of a sparse vector. Index
// identifies a vocabulary term through a stable 32-bit hash, so equal
// terms map to equal indices across independent calls.
type SparseEntry struct {
	Index uint32  `json:"index"`
	Value float32 `json:"value"`
}

// SparseVector is a variable-length set of term weights. Entries carry
// no ordering guarantee and indices are assumed unique within one vector.
type SparseVector []SparseEntry

// Get returns the value stored for a token index and whether it is present.
func (v SparseVector) Get(index uint32) (float32, bool) {
	for _, e := range v {
		if e.Index == index {
			return e.Value, true
		}
	}
	return 0, false
}

// ScoredCandidate is a retrieval result going through reranking.
// Reranking rewrites Score and leaves Text untouched.
type ScoredCandidate struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}
