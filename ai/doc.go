// Package ai defines the external AI service contracts used by the
// ingestion pipeline: atom extraction from raw document text and vector
// embedding generation.
//
// The concrete providers live in subpackages (openai for any
// OpenAI-compatible API, mock for tests). Consumers depend only on the
// interfaces defined here.
package ai
