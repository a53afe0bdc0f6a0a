package search

import "errors"

var (
	// ErrEmptyQuery is returned for a blank query string.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when an atom repository is not provided.
	ErrStoreRequired = errors.New("atom repository required")
)
