// Package openai implements the ai service interfaces against any
// OpenAI-compatible HTTP API (OpenAI, Ollama, LocalAI, vLLM).
package openai
