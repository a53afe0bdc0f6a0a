package pipeline

import "errors"

var (
	// ErrInvalidTransition indicates an event that is not legal in the
	// job's current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrQueueRequired is returned when a job queue is not provided.
	ErrQueueRequired = errors.New("job queue required")

	// ErrStoreRequired is returned when an atom repository is not provided.
	ErrStoreRequired = errors.New("atom repository required")

	// ErrFetcherRequired is returned when a document fetcher is not provided.
	ErrFetcherRequired = errors.New("document fetcher required")

	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrOrchestratorRequired is returned when an orchestrator is not provided.
	ErrOrchestratorRequired = errors.New("orchestrator required")

	// ErrListerRequired is returned when a source lister is not provided.
	ErrListerRequired = errors.New("source lister required")

	// ErrInvalidMaxAttempts indicates a retry call with a non-positive
	// attempt budget.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)
