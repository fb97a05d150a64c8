package embedder

import "errors"

var (
	// ErrEmptyContent indicates a single-item embed was called with no text.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrNoItems indicates a batch embed was called with an empty item set.
	ErrNoItems = errors.New("no items to encode")
)
