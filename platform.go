// Copyright 2025 Quillstore Authors
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


package quill

import (
	"io"
	"log/slog"

	"github.com/quillstore/quill/ai"
	"github.com/quillstore/quill/ai/openai"
	"github.com/quillstore/quill/events"
	"github.com/quillstore/quill/ingestion"
	"github.com/quillstore/quill/limiter"
	"github.com/quillstore/quill/reembed"
	"github.com/quillstore/quill/search"
	"github.com/quillstore/quill/storage"
	"github.com/quillstore/quill/storage/badger"
)

// Platform bundles the storage surfaces, the event bus, the tier
// limiter, and the embedder over one badger backend. It is the single
// handle an embedding application (or the CLI) holds.
type Platform struct {
	backend  *badger.Backend
	jobs     storage.JobLedger
	blobs    storage.BlobStore
	vectors  *badger.VectorStore
	projects storage.ProjectDirectory
	bus      *events.Bus
	limits   *limiter.Limiter
	embedder ai.Embedder
	logger   *slog.Logger
}

// PlatformOption configures a Platform.
type PlatformOption func(*platformOptions)

type platformOptions struct {
	aiConfig *ai.Config
	embedder ai.Embedder
	logger   *slog.Logger
}

// WithAIConfig sets the embedding endpoint configuration.
func WithAIConfig(config *ai.Config) PlatformOption {
	return func(o *platformOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder injects an embedder directly, bypassing the OpenAI
// client. Used by tests.
func WithEmbedder(embedder ai.Embedder) PlatformOption {
	return func(o *platformOptions) {
		o.embedder = embedder
	}
}

// WithPlatformLogger sets a custom logger.
func WithPlatformLogger(logger *slog.Logger) PlatformOption {
	return func(o *platformOptions) {
		o.logger = logger
	}
}

// NewPlatform opens the backend at filePath and wires up every store.
// An empty filePath opens an in-memory backend.
func NewPlatform(filePath string, opts ...PlatformOption) (*Platform, error) {
	options := &platformOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, filePath == "")
	if err != nil {
		return nil, err
	}

	jobs, err := badger.NewJobLedger(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	blobs, err := badger.NewBlobStore(backend)
	if err != nil {
		jobs.Close()
		backend.Close()
		return nil, err
	}

	vectors, err := badger.NewVectorStore(backend)
	if err != nil {
		blobs.Close()
		jobs.Close()
		backend.Close()
		return nil, err
	}

	projects, err := badger.NewProjectDirectory(backend)
	if err != nil {
		vectors.Close()
		blobs.Close()
		jobs.Close()
		backend.Close()
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			projects.Close()
			vectors.Close()
			blobs.Close()
			jobs.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Platform{
		backend:  backend,
		jobs:     jobs,
		blobs:    blobs,
		vectors:  vectors,
		projects: projects,
		bus:      events.NewBus(options.logger),
		limits:   limiter.New(options.logger),
		embedder: embedder,
		logger:   options.logger,
	}, nil
}

// Close releases every store and the backend.
func (p *Platform) Close() error {
	if err := p.projects.Close(); err != nil {
		p.logger.Error("error closing project directory", "err", err)
		return err
	}
	if err := p.vectors.Close(); err != nil {
		p.logger.Error("error closing vector store", "err", err)
		return err
	}
	if err := p.blobs.Close(); err != nil {
		p.logger.Error("error closing blob store", "err", err)
		return err
	}
	if err := p.jobs.Close(); err != nil {
		p.logger.Error("error closing job ledger", "err", err)
		return err
	}
	if err := p.backend.Close(); err != nil {
		p.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Jobs exposes the job ledger.
func (p *Platform) Jobs() storage.JobLedger {
	return p.jobs
}

// Blobs exposes the blob store.
func (p *Platform) Blobs() storage.BlobStore {
	return p.blobs
}

// Vectors exposes the vector store.
func (p *Platform) Vectors() storage.VectorStore {
	return p.vectors
}

// Projects exposes the project directory.
func (p *Platform) Projects() storage.ProjectDirectory {
	return p.projects
}

// Bus exposes the event bus.
func (p *Platform) Bus() *events.Bus {
	return p.bus
}

// Limiter exposes the per-tier concurrency limiter.
func (p *Platform) Limiter() *limiter.Limiter {
	return p.limits
}

// NewIngestionPipeline wires a pipeline over the platform's stores and
// subscribes its stage handlers on the bus.
func (p *Platform) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(p.logger)}, opts...)
	return ingestion.NewPipeline(p.bus, p.jobs, p.blobs, p.vectors, p.projects, p.vectors, p.limits, p.embedder, opts...)
}

// NewSearcher wires a similarity searcher over the platform's vector
// store and embedder.
func (p *Platform) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(p.logger)}, opts...)
	return search.NewSearcher(p.vectors, p.embedder, opts...)
}

// NewReembedder wires a reembedder over the platform's vector store and
// embedder. Progress goes to the given writer.
func (p *Platform) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(p.vectors, p.embedder, config, progress)
}
