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


package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/veridian/atomforge/ai"
	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/storage"
)

const (
	defaultLimit         = 10
	maxLimit             = 100
	defaultMinSimilarity = float32(0.25)
)

// Query is one similarity search request. Zero-valued fields take defaults:
// Limit 10 (capped at 100), MinSimilarity 0.25, nil Filter matches all.
type Query struct {
	Text          string
	Limit         int
	MinSimilarity float32
	Filter        *storage.AtomFilter
}

// Searcher embeds query text and ranks stored atoms against it.
type Searcher struct {
	embedder ai.Embedder
	store    storage.AtomRepository
	logger   *slog.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewSearcher creates a searcher over the given embedder and store. The
// embedder must be the same model family used at indexing time or scores are
// meaningless.
func NewSearcher(embedder ai.Embedder, store storage.AtomRepository, opts ...SearcherOption) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	s := &Searcher{
		embedder: embedder,
		store:    store,
		logger:   slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search returns up to q.Limit atoms ranked by cosine similarity to q.Text,
// strictly descending. Filter predicates and the similarity floor are applied
// before ranking. An empty result is a normal outcome, not an error.
func (s *Searcher) Search(ctx context.Context, q Query) ([]*core.SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	minSimilarity := q.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = defaultMinSimilarity
	}

	vector, err := s.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	results, err := s.store.FindSimilar(ctx, vector, minSimilarity, limit, q.Filter)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search complete",
		"query", q.Text, "limit", limit, "minSimilarity", minSimilarity, "results", len(results))
	return results, nil
}
