// Copyright 2025 Veridian Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/veridian/atomforge/ai"
)

const parseAttempts = 3

// AtomExtractor implements ai.AtomExtractor using OpenAI-compatible chat
// APIs.
type AtomExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// newAtomExtractor is the internal constructor returning the concrete type.
// Used by Provider to manage the instance.
func newAtomExtractor(config *ai.Config) (*AtomExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &AtomExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewAtomExtractor creates a new atom extractor using the provided
// configuration.
//
// Returns ai.AtomExtractor interface to enforce abstraction.
func NewAtomExtractor(config *ai.Config) (ai.AtomExtractor, error) {
	return newAtomExtractor(config)
}

// ExtractAtoms asks the LLM for candidate atom records and parses the
// response. The structured payload is isolated from any surrounding prose
// before parsing; a response that cannot be parsed after repair and retry is
// reported as ai.ErrParseFailed.
func (e *AtomExtractor) ExtractAtoms(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ai.ErrEmptyInput
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	var records []ai.ExtractedAtom
	var lastErr error
	for attempt := 1; attempt <= parseAttempts; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []ai.ExtractedAtom{}, nil
		}

		payload, err := isolatePayload(response.Choices[0].Content)
		if err != nil {
			lastErr = err
			e.logger.Warn("no structured payload in extractor response",
				"attempt", attempt, "err", err)
			continue
		}

		payload = repairJSON(payload)

		records = records[:0]
		if err := json.Unmarshal([]byte(payload), &records); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt,
				"payload", payload,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, fmt.Errorf("%w: %v", ai.ErrParseFailed, lastErr)
	}

	e.logger.Debug("extracted atom records", "count", len(records))
	return records, nil
}

// isolatePayload locates the outermost JSON array in a response that may be
// wrapped in markdown fences or surrounded by prose.
func isolatePayload(response string) (string, error) {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON array delimiters", ai.ErrParseFailed)
	}
	return s[start : end+1], nil
}
