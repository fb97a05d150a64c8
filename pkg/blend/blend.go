// Package blend combines a base vector with an optional boost vector:
// additive for dense embeddings, multiplicative-on-overlap for sparse
// weights. Blending perturbs values only; it never changes how many items
// a call produces.
package blend

import (
	"errors"
	"fmt"

	"github.com/trellisearch/vectorpipe/pkg/types"
)

// ErrLengthMismatch indicates the base and boost dense vectors come from
// different models or dimensionalities and cannot be combined.
var ErrLengthMismatch = errors.New("base and boost vectors differ in length")

// Dense returns combined[i] = base[i] + factor*boost[i]. Both vectors must
// have the same dimensionality.
func Dense(base, boost []float32, factor float32) ([]float32, error) {
	if len(base) != len(boost) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(base), len(boost))
	}
	combined := make([]float32, len(base))
	for i := range base {
		combined[i] = base[i] + factor*boost[i]
	}
	return combined, nil
}

// Sparse multiplies by factor the weight of every base entry whose token
// id also appears in boost. Ids present only in the boost vector are
// ignored: the boost emphasizes terms the document already has.
func Sparse(base, boost types.SparseVector, factor float32) types.SparseVector {
	boosted := make(map[uint32]struct{}, len(boost))
	for _, e := range boost {
		boosted[e.Index] = struct{}{}
	}
	combined := make(types.SparseVector, len(base))
	for i, e := range base {
		if _, ok := boosted[e.Index]; ok {
			e.Value *= factor
		}
		combined[i] = e
	}
	return combined
}
