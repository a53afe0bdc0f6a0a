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


package mock

import "github.com/veridian/atomforge/ai"

// Provider is a test double for ai.Provider aggregating mock services.
type Provider struct {
	embedder  *Embedder
	extractor *AtomExtractor
}

// NewProvider creates a mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production
// constructors. Use MockEmbedder()/MockExtractor() for test assertions.
func NewProvider() ai.Provider {
	return &Provider{
		embedder:  NewEmbedder(),
		extractor: NewAtomExtractor(),
	}
}

// NewProviderWithServices creates a mock provider with custom mock services.
func NewProviderWithServices(embedder *Embedder, extractor *AtomExtractor) ai.Provider {
	return &Provider{
		embedder:  embedder,
		extractor: extractor,
	}
}

// Embedder returns the mock embedder.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// AtomExtractor returns the mock atom extractor.
func (p *Provider) AtomExtractor() ai.AtomExtractor {
	return p.extractor
}

// Close is a no-op for the mock provider.
func (p *Provider) Close() error {
	return nil
}

// MockEmbedder returns the underlying mock embedder for test assertions.
func (p *Provider) MockEmbedder() *Embedder {
	return p.embedder
}

// MockExtractor returns the underlying mock extractor for test assertions.
func (p *Provider) MockExtractor() *AtomExtractor {
	return p.extractor
}
