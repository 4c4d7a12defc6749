package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/events"
	"github.com/quillstore/quill/storage"
)

// vectorWriteHandler consumes EmbeddingsGenerated events: it persists
// the page's vectors into the tenant collection, folds the page's
// counters into the job result, and completes the job once the final
// page is stored.
type vectorWriteHandler struct {
	p *Pipeline
}

func newVectorWriteHandler(p *Pipeline) events.Handler {
	return &vectorWriteHandler{p: p}
}

func (h *vectorWriteHandler) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.EmbeddingsGenerated)
	if !ok {
		return fmt.Errorf("vector write: unexpected event %T", event)
	}
	p := h.p
	corr := e.Corr

	if p.terminal(ctx, corr.JobID) {
		return nil
	}
	p.advance(ctx, corr.JobID, core.JobStoring, 90)

	project, err := p.projects.Resolve(ctx, corr.ProjectID)
	if err != nil {
		p.failJob(ctx, corr, core.StageStorage, fmt.Errorf("%w: %s", ErrProjectNotFound, corr.ProjectID))
		return nil
	}

	if p.ensurer != nil {
		// Preparation failures are not fatal; the write itself decides.
		if err := p.ensurer.EnsureIndex(ctx, corr.ProjectID, corr.Collection); err != nil {
			p.logger.Warn("failed to prepare collection",
				"job_id", corr.JobID, "collection", corr.Collection, "err", err)
		}
	}

	now := time.Now().UTC()
	records := make([]*core.VectorRecord, len(e.Chunks))
	for i, text := range e.Chunks {
		records[i] = &core.VectorRecord{
			Text:      text,
			Embedding: e.Embeddings[i],
			Meta: core.ChunkMeta{
				Index:      i,
				Size:       len(text),
				PageNumber: e.PageNumber,
				TotalPages: e.TotalPages,
				Filename:   e.Filename,
				SourceType: e.SourceType,
				DocumentID: e.DocumentID,
				User:       e.User,
			},
			JobID:     corr.JobID,
			CreatedAt: now,
			ExpiresAt: project.ExpiresAt,
		}
	}

	if err := p.vectors.UpsertBatch(ctx, corr.ProjectID, corr.Collection, records); err != nil {
		p.failJob(ctx, corr, core.StageStorage, err)
		return nil
	}

	// Events for one job arrive strictly in order, so read-modify-write
	// on the result is race-free here.
	job, err := p.ledger.GetJob(ctx, corr.JobID)
	if err != nil || job == nil {
		p.logger.Error("failed to load job for result update", "job_id", corr.JobID, "err", err)
		return nil
	}
	result := job.Result
	result.ChunksCreated += len(e.Chunks)
	result.EmbeddingsGenerated += len(e.Embeddings)
	result.VectorsStored += len(records)
	result.TotalPages = e.TotalPages
	if e.PageNumber > 0 {
		result.PagesProcessed = e.PageNumber
	}
	result.ProcessingTimeMs = elapsedMs(job)

	final := e.TotalPages == 0 || e.PageNumber >= e.TotalPages
	if !final {
		if _, err := p.ledger.UpdateStatus(ctx, corr.JobID, core.JobStoring, &storage.JobUpdate{Result: &result}); err != nil {
			p.logger.Error("failed to store page result", "job_id", corr.JobID, "err", err)
		}
		return nil
	}

	if _, err := p.ledger.UpdateStatus(ctx, corr.JobID, core.JobCompleted, &storage.JobUpdate{Result: &result}); err != nil {
		p.logger.Error("failed to complete job", "job_id", corr.JobID, "err", err)
		return nil
	}
	p.logger.Info("job completed",
		"job_id", corr.JobID, "vectors", result.VectorsStored, "pages", result.PagesProcessed)
	p.bus.Publish(ctx, events.IngestCompleted{Corr: corr, Result: result})
	return nil
}

// elapsedMs measures how long a job has been running.
func elapsedMs(job *core.Job) int64 {
	return time.Since(job.CreatedAt).Milliseconds()
}
