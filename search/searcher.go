package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quillstore/quill/ai"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

// DefaultMinScore filters out matches with little semantic overlap.
const DefaultMinScore = 0.60

// Searcher answers similarity queries over a tenant's collections.
type Searcher struct {
	vectors  storage.VectorStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(vectors storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		vectors:  vectors,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Query holds the parameters of one search.
type Query struct {
	ProjectID  string
	Collection string
	Text       string
	MinScore   float32 // 0 means DefaultMinScore
	Limit      int     // 0 means 10
}

// Find embeds the query text and returns the most similar stored
// chunks, best first.
func (s *Searcher) Find(ctx context.Context, q *Query) ([]*core.VectorMatch, error) {
	return s.FindWithMonitor(ctx, q, nil)
}

// FindWithMonitor is Find with observation hooks for each stage.
func (s *Searcher) FindWithMonitor(ctx context.Context, q *Query, monitor SearchMonitor) ([]*core.VectorMatch, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}

	minScore := q.MinScore
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	monitor.Start(q.Text)

	embedding, err := s.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(len(embedding))

	matches, err := s.vectors.Search(ctx, q.ProjectID, q.Collection, embedding, minScore, limit)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	monitor.Finish(matches)
	return matches, nil
}
