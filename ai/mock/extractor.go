package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridian/atomforge/ai"
)

// AtomExtractor is a test double for ai.AtomExtractor.
// It allows custom behavior injection via function fields.
type AtomExtractor struct {
	// ExtractAtomsFunc is called by ExtractAtoms if set.
	// If nil, uses default canned-record behavior.
	ExtractAtomsFunc func(ctx context.Context, text string) ([]ai.ExtractedAtom, error)

	callCount int
}

// NewAtomExtractor creates a mock extractor with default behavior.
// Returns the concrete type to allow test assertions.
func NewAtomExtractor() *AtomExtractor {
	return &AtomExtractor{}
}

// ExtractAtoms returns one well-formed candidate record derived from the
// input text, or nothing for blank input.
func (m *AtomExtractor) ExtractAtoms(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
	m.callCount++

	if m.ExtractAtomsFunc != nil {
		return m.ExtractAtomsFunc(ctx, text)
	}

	if strings.TrimSpace(text) == "" {
		return []ai.ExtractedAtom{}, nil
	}

	title := strings.TrimSpace(text)
	if len(title) > 40 {
		title = title[:40]
	}

	return []ai.ExtractedAtom{
		{
			AtomType: "concept",
			Vendor:   "testvendor",
			Product:  "testproduct",
			Title:    title,
			Summary:  fmt.Sprintf("Mock summary derived from input text of %d characters for testing.", len(text)),
			Content: fmt.Sprintf("Mock knowledge content derived from the input document. %s",
				strings.Repeat("Detail sentence for padding the content body. ", 8)),
			Keywords:   []string{"mock", "test", "knowledge"},
			Difficulty: "beginner",
		},
	}, nil
}

// CallCount returns the number of times ExtractAtoms was called.
func (m *AtomExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *AtomExtractor) Reset() {
	m.callCount = 0
	m.ExtractAtomsFunc = nil
}
