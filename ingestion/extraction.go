package ingestion

import (
	"context"
	"fmt"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/events"
	"github.com/quillstore/quill/extract"
)

// extractionHandler consumes SavedToStore events: it claims a tier
// extraction slot, walks the PDF page by page, and publishes one
// PageExtracted per page. Empty pages are published too; the chunking
// stage decides what an empty page means for the job.
type extractionHandler struct {
	p *Pipeline
}

func newExtractionHandler(p *Pipeline) events.Handler {
	return &extractionHandler{p: p}
}

func (h *extractionHandler) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SavedToStore)
	if !ok {
		return fmt.Errorf("extraction: unexpected event %T", event)
	}
	p := h.p
	corr := e.Corr

	if err := p.limits.Acquire(ctx, e.Tier, corr.JobID); err != nil {
		p.failJob(ctx, corr, core.StageExtraction, err)
		return nil
	}
	defer p.limits.Release(e.Tier, corr.JobID)

	p.advance(ctx, corr.JobID, core.JobExtracting, 10)

	doc, err := p.extractor.Open(e.Data)
	if err != nil {
		p.failJob(ctx, corr, core.StageExtraction, err)
		return nil
	}

	totalPages := doc.TotalPages()
	if totalPages < 1 {
		p.failJob(ctx, corr, core.StageExtraction, extract.ErrNoPages)
		return nil
	}
	perPage := 30 / totalPages

	p.logger.Info("extracting document",
		"job_id", corr.JobID, "filename", e.Filename, "pages", totalPages)

	for page := 1; page <= totalPages; page++ {
		if p.terminal(ctx, corr.JobID) {
			return nil
		}

		text, err := doc.Text(page)
		if err != nil {
			p.failJob(ctx, corr, core.StageExtraction, err)
			return nil
		}
		p.bump(ctx, corr.JobID, perPage)

		p.bus.Publish(ctx, events.PageExtracted{
			Corr:       corr,
			PageNumber: page,
			TotalPages: totalPages,
			Text:       text,
			ChunkSize:  e.ChunkSize,
			Filename:   e.Filename,
			DocumentID: e.DocumentID,
			User:       e.User,
		})
	}
	return nil
}
