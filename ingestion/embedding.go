package ingestion

import (
	"context"
	"fmt"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/events"
)

// embeddingHandler consumes Chunked events, runs the chunks through the
// embedder in batches, and publishes EmbeddingsGenerated.
type embeddingHandler struct {
	p *Pipeline
}

func newEmbeddingHandler(p *Pipeline) events.Handler {
	return &embeddingHandler{p: p}
}

func (h *embeddingHandler) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.Chunked)
	if !ok {
		return fmt.Errorf("embedding: unexpected event %T", event)
	}
	p := h.p
	corr := e.Corr

	if p.terminal(ctx, corr.JobID) {
		return nil
	}
	p.advance(ctx, corr.JobID, core.JobEmbedding, 60)

	// Per-page share of the embedding band, spread across the batches so
	// progress moves with every embedder call. Text jobs carry the whole
	// band in one event.
	share := 30
	if e.TotalPages > 0 {
		share = 30 / e.TotalPages
	}
	perBatch := share
	if batches := (len(e.Chunks) + p.embedBatchSize - 1) / p.embedBatchSize; batches > 0 {
		perBatch = share / batches
	}

	embeddings := make([][]float32, 0, len(e.Chunks))
	for start := 0; start < len(e.Chunks); start += p.embedBatchSize {
		end := min(start+p.embedBatchSize, len(e.Chunks))
		batch, err := p.embedder.EmbedTexts(ctx, e.Chunks[start:end])
		if err != nil {
			p.failJob(ctx, corr, core.StageEmbedding, err)
			return nil
		}
		if len(batch) != end-start {
			p.failJob(ctx, corr, core.StageEmbedding,
				fmt.Errorf("embedder returned %d vectors for %d chunks", len(batch), end-start))
			return nil
		}
		embeddings = append(embeddings, batch...)
		p.bump(ctx, corr.JobID, perBatch)
	}

	p.bus.Publish(ctx, events.EmbeddingsGenerated{
		Corr:       corr,
		Chunks:     e.Chunks,
		Embeddings: embeddings,
		PageNumber: e.PageNumber,
		TotalPages: e.TotalPages,
		Filename:   e.Filename,
		SourceType: e.SourceType,
		DocumentID: e.DocumentID,
		User:       e.User,
	})
	return nil
}
