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


package atomforge

import (
	"context"
	"log/slog"

	"github.com/veridian/atomforge/ai"
	"github.com/veridian/atomforge/ai/openai"
	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/fetch"
	"github.com/veridian/atomforge/pipeline"
	"github.com/veridian/atomforge/search"
	"github.com/veridian/atomforge/storage"
	"github.com/veridian/atomforge/storage/badger"
	"github.com/veridian/atomforge/validate"
)

// System bundles the store, queue, AI provider and validation engine behind
// one open/close lifecycle. It is the embedding-friendly entry point; the
// CLI in cmd/atomforge is a thin shell over it.
type System struct {
	backend  *badger.Backend
	atoms    storage.AtomRepository
	queue    storage.JobQueue
	provider ai.Provider
	fetcher  fetch.Fetcher
	engine   *validate.Engine
	limits   *pipeline.ServiceLimits
	logger   *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig *ai.Config
	limits   pipeline.LimitsConfig
	inMemory bool
}

// WithAIConfig overrides the default AI endpoint configuration.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithServiceLimits overrides the per-service concurrency caps.
func WithServiceLimits(cfg pipeline.LimitsConfig) SystemOption {
	return func(o *systemOptions) {
		o.limits = cfg
	}
}

// WithInMemory opens the store in memory, discarding all data on Close.
func WithInMemory() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// NewSystem opens a system rooted at filePath.
func NewSystem(filePath string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	atoms, err := badger.NewAtomRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	queue, err := badger.NewJobQueue(backend)
	if err != nil {
		atoms.Close()
		backend.Close()
		return nil, err
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		queue.Close()
		atoms.Close()
		backend.Close()
		return nil, err
	}

	limits, err := pipeline.NewServiceLimits(options.limits)
	if err != nil {
		provider.Close()
		queue.Close()
		atoms.Close()
		backend.Close()
		return nil, err
	}

	return &System{
		backend:  backend,
		atoms:    atoms,
		queue:    queue,
		provider: provider,
		fetcher:  fetch.NewHTTPFetcher(),
		engine:   validate.NewEngine(),
		limits:   limits,
		logger:   slog.Default(),
	}, nil
}

// Close releases every component in reverse construction order.
func (s *System) Close() error {
	s.limits.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.queue.Close(); err != nil {
		s.logger.Error("error closing job queue", "err", err)
		return err
	}
	if err := s.atoms.Close(); err != nil {
		s.logger.Error("error closing atom repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// AtomRepository exposes the knowledge store.
func (s *System) AtomRepository() storage.AtomRepository {
	return s.atoms
}

// JobQueue exposes the durable ingestion queue.
func (s *System) JobQueue() storage.JobQueue {
	return s.queue
}

// NewOrchestrator builds a job orchestrator over the system's components.
func (s *System) NewOrchestrator(opts ...pipeline.OrchestratorOption) (*pipeline.Orchestrator, error) {
	return pipeline.NewOrchestrator(s.atoms, s.fetcher, s.provider, s.engine, s.limits, opts...)
}

// NewWorkerPool builds a worker pool consuming the system's queue.
func (s *System) NewWorkerPool(orchOpts []pipeline.OrchestratorOption, opts ...pipeline.WorkerOption) (*pipeline.WorkerPool, error) {
	orch, err := s.NewOrchestrator(orchOpts...)
	if err != nil {
		return nil, err
	}
	return pipeline.NewWorkerPool(s.queue, orch, opts...)
}

// NewScheduler builds a scheduler feeding the system's queue.
func (s *System) NewScheduler(lister pipeline.SourceLister, opts ...pipeline.SchedulerOption) (*pipeline.Scheduler, error) {
	return pipeline.NewScheduler(s.queue, lister, opts...)
}

// NewSearcher builds a similarity searcher over the system's store.
func (s *System) NewSearcher(opts ...search.SearcherOption) (*search.Searcher, error) {
	return search.NewSearcher(s.provider.Embedder(), s.atoms, opts...)
}

// RunSingleJob ingests one URL synchronously, bypassing the queue. Intended
// for one-off ingestion and debugging; the returned job carries the full
// log and error trail.
func (s *System) RunSingleJob(ctx context.Context, sourceURL string, opts ...pipeline.OrchestratorOption) (*core.IngestionJob, error) {
	orch, err := s.NewOrchestrator(opts...)
	if err != nil {
		return nil, err
	}
	job := core.NewIngestionJob(sourceURL)
	if err := orch.Run(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}
