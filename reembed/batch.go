package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/quillstore/quill/ai"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

// BatchProcessor regenerates embeddings for batches of vector records.
type BatchProcessor struct {
	vectors        storage.VectorStore
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(vectors storage.VectorStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		vectors:        vectors,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process regenerates embeddings for a batch of records and writes them
// back into their collection. Vectors are normalized after embedding so
// cosine similarity stays well behaved.
func (bp *BatchProcessor) Process(ctx context.Context, projectID, collection string, records []*core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(embeddings))
	}

	for i := range records {
		records[i].Embedding = NormalizeVector(embeddings[i])
	}

	if err := bp.vectors.UpsertBatch(ctx, projectID, collection, records); err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}

	return nil
}
