package ingestion

import (
	"context"
	"fmt"

	"github.com/quillstore/quill/chunk"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/events"
	"github.com/quillstore/quill/storage"
)

// chunkingHandler consumes PageExtracted and TextSubmitted events and
// publishes Chunked. A page that yields no chunks produces no Chunked
// event; when that page is the document's last and nothing downstream
// is still running, the handler finalizes the job itself so it cannot
// hang in a non-terminal state.
type chunkingHandler struct {
	p *Pipeline
}

func newChunkingHandler(p *Pipeline) events.Handler {
	return &chunkingHandler{p: p}
}

func (h *chunkingHandler) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.PageExtracted:
		h.handlePage(ctx, e)
		return nil
	case events.TextSubmitted:
		h.handleText(ctx, e)
		return nil
	default:
		return fmt.Errorf("chunking: unexpected event %T", event)
	}
}

func (h *chunkingHandler) handlePage(ctx context.Context, e events.PageExtracted) {
	p := h.p
	if p.terminal(ctx, e.Corr.JobID) {
		return
	}
	p.advance(ctx, e.Corr.JobID, core.JobChunking, 40)

	chunks := chunk.Split(e.Text, e.ChunkSize)
	if len(chunks) == 0 {
		p.logger.Debug("page yielded no chunks",
			"job_id", e.Corr.JobID, "page", e.PageNumber)
		if e.PageNumber >= e.TotalPages {
			h.finalizeEmpty(ctx, e.Corr, e.TotalPages)
		}
		return
	}
	p.bump(ctx, e.Corr.JobID, 20/e.TotalPages)

	p.bus.Publish(ctx, events.Chunked{
		Corr:       e.Corr,
		Chunks:     chunks,
		PageNumber: e.PageNumber,
		TotalPages: e.TotalPages,
		Filename:   e.Filename,
		SourceType: "pdf",
		DocumentID: e.DocumentID,
		User:       e.User,
	})
}

func (h *chunkingHandler) handleText(ctx context.Context, e events.TextSubmitted) {
	p := h.p
	if p.terminal(ctx, e.Corr.JobID) {
		return
	}
	p.advance(ctx, e.Corr.JobID, core.JobChunking, 40)

	chunks := chunk.Split(e.Text, e.ChunkSize)
	if len(chunks) == 0 {
		h.finalizeEmpty(ctx, e.Corr, 0)
		return
	}
	p.bump(ctx, e.Corr.JobID, 20)

	p.bus.Publish(ctx, events.Chunked{
		Corr:       e.Corr,
		Chunks:     chunks,
		SourceType: "text",
		DocumentID: e.DocumentID,
		User:       e.User,
	})
}

// finalizeEmpty completes a job whose source produced no embeddable
// content at all, or whose final page was empty after earlier pages
// already flowed through storage. The stored counters reflect whatever
// earlier pages contributed.
func (h *chunkingHandler) finalizeEmpty(ctx context.Context, corr events.Correlation, totalPages int) {
	p := h.p
	job, err := p.ledger.GetJob(ctx, corr.JobID)
	if err != nil || job == nil {
		p.logger.Error("failed to load job for completion", "job_id", corr.JobID, "err", err)
		return
	}
	result := job.Result
	result.PagesProcessed = totalPages
	result.TotalPages = totalPages
	result.ProcessingTimeMs = elapsedMs(job)

	if _, err := p.ledger.UpdateStatus(ctx, corr.JobID, core.JobCompleted, &storage.JobUpdate{Result: &result}); err != nil {
		p.logger.Error("failed to complete job", "job_id", corr.JobID, "err", err)
		return
	}
	p.bus.Publish(ctx, events.IngestCompleted{Corr: corr, Result: result})
}
