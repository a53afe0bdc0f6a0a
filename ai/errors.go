package ai

import "errors"

var (
	// ErrParseFailed indicates the extraction service response could not be
	// parsed as a sequence of atom records, even after repair attempts.
	ErrParseFailed = errors.New("extraction response parse failed")

	// ErrEmptyInput indicates extraction was called with no text.
	ErrEmptyInput = errors.New("extraction input is empty")
)
