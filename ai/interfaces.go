package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one batch.
	// The returned slice preserves input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AtomExtractor turns raw document text into candidate knowledge atom
// records. Implementations must be safe for concurrent use.
//
// A response that cannot be parsed as a sequence of atom records is reported
// as ErrParseFailed; callers treat that as "zero atoms extracted", never as a
// hard pipeline failure.
type AtomExtractor interface {
	ExtractAtoms(ctx context.Context, text string) ([]ExtractedAtom, error)
}

// Provider aggregates the AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// AtomExtractor returns the atom extraction service.
	AtomExtractor() AtomExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
