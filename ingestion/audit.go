package ingestion

import (
	"context"
	"log/slog"

	"github.com/quillstore/quill/events"
)

// auditListener writes one structured log line per job lifecycle event:
// started, completed, failed. It runs detached from the stage chain; a
// slow or broken audit sink never delays a job.
type auditListener struct {
	log *slog.Logger
}

func newAuditListener(logger *slog.Logger) events.Handler {
	return &auditListener{log: logger.With("component", "audit")}
}

func (a *auditListener) Handle(ctx context.Context, event events.Event) error {
	corr := event.Correlation()
	switch e := event.(type) {
	case events.IngestStarted:
		a.log.Info("ingest started",
			"job_id", corr.JobID,
			"owner", corr.OwnerID,
			"project", corr.ProjectID,
			"collection", corr.Collection,
			"type", e.Type,
			"filename", e.Filename,
			"tier", e.Tier)
	case events.IngestCompleted:
		a.log.Info("ingest completed",
			"job_id", corr.JobID,
			"owner", corr.OwnerID,
			"project", corr.ProjectID,
			"collection", corr.Collection,
			"pages", e.Result.PagesProcessed,
			"chunks", e.Result.ChunksCreated,
			"vectors", e.Result.VectorsStored,
			"elapsed_ms", e.Result.ProcessingTimeMs)
	case events.IngestFailed:
		a.log.Warn("ingest failed",
			"job_id", corr.JobID,
			"owner", corr.OwnerID,
			"project", corr.ProjectID,
			"stage", e.Stage,
			"reason", e.Message)
	default:
		a.log.Info("pipeline event", "kind", event.Kind(), "job_id", corr.JobID)
	}
	return nil
}
