package scoring

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Op: "embed_dense", Err: cause}

	assert.Contains(t, err.Error(), "embed_dense")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &TransportError{})
}

func TestShapeError(t *testing.T) {
	err := &ShapeError{Op: "rerank", Detail: "score index 9 out of range for 3 texts"}

	assert.Contains(t, err.Error(), "rerank")
	assert.Contains(t, err.Error(), "out of range")
	assert.ErrorIs(t, err, &ShapeError{})

	var shapeErr *ShapeError
	assert.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &shapeErr)
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("embed_sparse: %w: sparse.doc_origin", ErrMissingConfig)
	assert.ErrorIs(t, err, ErrMissingConfig)

	err = fmt.Errorf("embed_dense: position 2: %w", ErrEmptyResult)
	assert.ErrorIs(t, err, ErrEmptyResult)
}
