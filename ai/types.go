package ai

// ExtractedAtom is one candidate atom record as emitted by the extraction
// service. The JSON field names are the request/response contract with the
// LLM; the orchestrator converts records into core.KnowledgeAtom values.
type ExtractedAtom struct {
	// AtomType is one of: fault, procedure, concept, pattern, specification.
	AtomType string `json:"atom_type"`

	// Vendor is the manufacturer the knowledge applies to.
	Vendor string `json:"vendor"`

	// Product is the product family the knowledge applies to.
	Product string `json:"product"`

	// Title is a short human-readable headline.
	Title string `json:"title"`

	// Summary is a one-to-two sentence abstract of the content.
	Summary string `json:"summary"`

	// Content is the full self-contained knowledge text.
	Content string `json:"content"`

	// Keywords are lowercase search terms, 3-15 entries.
	Keywords []string `json:"keywords"`

	// Difficulty is one of: beginner, intermediate, advanced.
	Difficulty string `json:"difficulty"`
}
