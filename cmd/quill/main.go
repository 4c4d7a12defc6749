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


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	quill "github.com/quillstore/quill"
	"github.com/quillstore/quill/ai"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/ingestion"
	"github.com/quillstore/quill/reembed"
	"github.com/quillstore/quill/search"
)

func main() {
	embeddingFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "API token for the embedding service",
			Value: "none",
		},
	}
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}

	app := &cli.App{
		Name:   "quill",
		Usage:  "Asynchronous document ingestion and semantic search",
		Before: setupLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "project-create",
				Usage:  "Create a tenant project",
				Action: projectCreateCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "id", Usage: "Project ID (random if omitted)"},
					&cli.StringFlag{Name: "owner", Usage: "Owner ID", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Project display name"},
					&cli.StringFlag{Name: "tier", Usage: "Subscription tier (free, starter, pro)", Value: "free"},
					&cli.DurationFlag{Name: "ttl", Usage: "Project lifetime", Value: 30 * 24 * time.Hour},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Ingest a PDF file into a collection",
				Action: ingestCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "project", Usage: "Project ID", Required: true},
					&cli.StringFlag{Name: "collection", Usage: "Collection name", Required: true},
					&cli.StringFlag{Name: "file", Usage: "Path to the PDF file", Required: true},
					&cli.StringFlag{Name: "owner", Usage: "Owner ID (defaults to the project owner)"},
					&cli.StringFlag{Name: "document-id", Usage: "Document ID (random if omitted)"},
					&cli.IntFlag{Name: "chunk-size", Usage: "Chunk size in tokens", Value: 0},
					&cli.BoolFlag{Name: "wait", Usage: "Wait for the job to finish", Value: true},
				}, embeddingFlags...),
			},
			{
				Name:   "ingest-text",
				Usage:  "Ingest raw text into a collection",
				Action: ingestTextCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "project", Usage: "Project ID", Required: true},
					&cli.StringFlag{Name: "collection", Usage: "Collection name", Required: true},
					&cli.StringFlag{Name: "text", Usage: "Text to ingest (reads stdin if omitted)"},
					&cli.StringFlag{Name: "owner", Usage: "Owner ID (defaults to the project owner)"},
					&cli.StringFlag{Name: "document-id", Usage: "Document ID (random if omitted)"},
					&cli.IntFlag{Name: "chunk-size", Usage: "Chunk size in tokens", Value: 0},
					&cli.BoolFlag{Name: "wait", Usage: "Wait for the job to finish", Value: true},
				}, embeddingFlags...),
			},
			{
				Name:   "job",
				Usage:  "Show the status of one job",
				Action: jobCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "id", Usage: "Job ID", Required: true},
				},
			},
			{
				Name:   "jobs",
				Usage:  "List jobs for an owner or a project, newest first",
				Action: jobsCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "owner", Usage: "Owner ID"},
					&cli.StringFlag{Name: "project", Usage: "Project ID"},
					&cli.StringFlag{Name: "status", Usage: "Only list jobs in this status"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of jobs", Value: 20},
				},
			},
			{
				Name:   "search",
				Usage:  "Search a collection for similar chunks",
				Action: searchCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "project", Usage: "Project ID", Required: true},
					&cli.StringFlag{Name: "collection", Usage: "Collection name", Required: true},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Query text", Required: true},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 10},
					&cli.Float64Flag{Name: "min-score", Usage: "Minimum similarity score", Value: search.DefaultMinScore},
				}, embeddingFlags...),
			},
			{
				Name:   "delete-document",
				Usage:  "Remove every chunk a document contributed to a collection",
				Action: deleteDocumentCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "project", Usage: "Project ID", Required: true},
					&cli.StringFlag{Name: "collection", Usage: "Collection name", Required: true},
					&cli.StringFlag{Name: "document", Usage: "Document ID", Required: true},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show blob store statistics",
				Action: statsCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "project", Usage: "Project ID (with --collection, also counts records)"},
					&cli.StringFlag{Name: "collection", Usage: "Collection name"},
				},
			},
			{
				Name:   "sweep",
				Usage:  "Remove expired projects",
				Action: sweepCommand,
				Flags:  []cli.Flag{dbFlag},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every record in a collection with new embeddings",
				Action: reembedCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{Name: "project", Usage: "Project ID", Required: true},
					&cli.StringFlag{Name: "collection", Usage: "Collection name", Required: true},
					&cli.IntFlag{Name: "batch-size", Usage: "Number of records to process in each batch", Value: 100},
					&cli.IntFlag{Name: "report-interval", Usage: "Report progress every N records", Value: 100},
					&cli.IntFlag{Name: "max-retries", Usage: "Maximum retry attempts for failed operations", Value: 3},
					&cli.DurationFlag{Name: "retry-delay", Usage: "Base delay for exponential backoff", Value: 1 * time.Second},
				}, embeddingFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openPlatform builds a Platform from the shared CLI flags. Commands
// that never touch the embedder don't define the embedding flags, so
// missing values fall back to the defaults.
func openPlatform(c *cli.Context) (*quill.Platform, error) {
	var opts []ai.ConfigOption
	if host := c.String("embedding-host"); host != "" {
		opts = append(opts, ai.WithHost(host))
	}
	if model := c.String("embedding-model"); model != "" {
		opts = append(opts, ai.WithEmbeddingModel(model))
	}
	if token := c.String("token"); token != "" {
		opts = append(opts, ai.WithToken(token))
	}
	aiConfig := ai.NewConfig(opts...)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	platform, err := quill.NewPlatform(c.String("db"), quill.WithAIConfig(aiConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return platform, nil
}

func projectCreateCommand(c *cli.Context) error {
	ctx := context.Background()

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	id := c.String("id")
	if id == "" {
		id = uuid.NewString()
	}

	project := &core.Project{
		ID:        id,
		OwnerID:   c.String("owner"),
		Name:      c.String("name"),
		Tier:      c.String("tier"),
		ExpiresAt: time.Now().UTC().Add(c.Duration("ttl")),
	}
	if err := platform.Projects().CreateProject(ctx, project); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	fmt.Printf("Created project %s (tier %s, expires %s)\n",
		project.ID, core.TierByName(project.Tier).Name, project.ExpiresAt.Format(time.RFC3339))
	return nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	pipeline, err := platform.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	job, err := pipeline.IngestPDF(ctx, &ingestion.PDFRequest{
		OwnerID:    c.String("owner"),
		ProjectID:  c.String("project"),
		Collection: c.String("collection"),
		Filename:   filepath.Base(c.String("file")),
		Data:       data,
		ChunkSize:  c.Int("chunk-size"),
		DocumentID: c.String("document-id"),
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Job %s queued (%d bytes)\n", job.ID, len(data))
	if c.Bool("wait") {
		return waitForJob(ctx, platform, job.ID)
	}
	return nil
}

func ingestTextCommand(c *cli.Context) error {
	ctx := context.Background()

	text := c.String("text")
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	pipeline, err := platform.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	job, err := pipeline.IngestText(ctx, &ingestion.TextRequest{
		OwnerID:    c.String("owner"),
		ProjectID:  c.String("project"),
		Collection: c.String("collection"),
		Text:       text,
		ChunkSize:  c.Int("chunk-size"),
		DocumentID: c.String("document-id"),
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Job %s queued (%d bytes)\n", job.ID, len(text))
	if c.Bool("wait") {
		return waitForJob(ctx, platform, job.ID)
	}
	return nil
}

// waitForJob polls the ledger until the job reaches a terminal state.
func waitForJob(ctx context.Context, platform *quill.Platform, jobID string) error {
	for {
		job, err := platform.Jobs().GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to poll job: %w", err)
		}
		if job == nil {
			return fmt.Errorf("job %s disappeared", jobID)
		}
		if job.Status.Terminal() {
			printJob(job)
			if job.Status == core.JobFailed {
				return fmt.Errorf("job failed: %s", job.Error)
			}
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func jobCommand(c *cli.Context) error {
	ctx := context.Background()

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	job, err := platform.Jobs().GetJob(ctx, c.String("id"))
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", c.String("id"))
	}

	printJob(job)
	return nil
}

func jobsCommand(c *cli.Context) error {
	ctx := context.Background()

	owner := c.String("owner")
	project := c.String("project")
	if owner == "" && project == "" {
		return fmt.Errorf("either --owner or --project is required")
	}

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	status := core.JobStatus(c.String("status"))
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	var jobs []*core.Job
	if owner != "" {
		jobs, err = platform.Jobs().ListJobsByOwner(ctx, owner, c.Int("limit"), status)
	} else {
		jobs, err = platform.Jobs().ListJobsByProject(ctx, project, c.Int("limit"), status)
	}
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	for _, job := range jobs {
		fmt.Printf("%s  %-22s %3d%%  %s  %s\n",
			job.ID, job.Status, job.Progress, job.Type, job.CreatedAt.Format(time.RFC3339))
	}
	fmt.Printf("%d job(s)\n", len(jobs))
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	searcher, err := platform.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	matches, err := searcher.Find(ctx, &search.Query{
		ProjectID:  c.String("project"),
		Collection: c.String("collection"),
		Text:       c.String("query"),
		MinScore:   float32(c.Float64("min-score")),
		Limit:      c.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for i, match := range matches {
		fmt.Printf("%2d. [%.3f] %s\n", i+1, match.Score, match.Record.Text)
	}
	fmt.Printf("%d match(es)\n", len(matches))
	return nil
}

func deleteDocumentCommand(c *cli.Context) error {
	ctx := context.Background()

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	removed, err := platform.Vectors().DeleteByDocument(ctx,
		c.String("project"), c.String("collection"), c.String("document"))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	fmt.Printf("Removed %d record(s)\n", removed)
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	stats, err := platform.Blobs().Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get blob stats: %w", err)
	}

	fmt.Printf("Blob store:\n")
	fmt.Printf("  files:         %d\n", stats.FileCount)
	fmt.Printf("  unique hashes: %d\n", stats.UniqueHashes)
	fmt.Printf("  total refs:    %d\n", stats.TotalRefs)
	fmt.Printf("  total bytes:   %d\n", stats.TotalBytes)
	fmt.Printf("  dedup ratio:   %.2f\n", stats.DedupRatio)

	if project, collection := c.String("project"), c.String("collection"); project != "" && collection != "" {
		count, err := platform.Vectors().Count(ctx, project, collection)
		if err != nil {
			return fmt.Errorf("failed to count records: %w", err)
		}
		fmt.Printf("Collection %s/%s: %d record(s)\n", project, collection, count)
	}
	return nil
}

func sweepCommand(c *cli.Context) error {
	ctx := context.Background()

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	removed, err := platform.Projects().SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Printf("Removed %d expired project(s)\n", removed)
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	platform, err := openPlatform(c)
	if err != nil {
		return err
	}
	defer platform.Close()

	reembedder, err := platform.NewReembedder(config, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(ctx, c.String("project"), c.String("collection")); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func printJob(job *core.Job) {
	fmt.Printf("Job %s\n", job.ID)
	fmt.Printf("  status:   %s (%d%%)\n", job.Status, job.Progress)
	fmt.Printf("  type:     %s\n", job.Type)
	fmt.Printf("  project:  %s/%s\n", job.ProjectID, job.Collection)
	fmt.Printf("  created:  %s\n", job.CreatedAt.Format(time.RFC3339))
	if !job.CompletedAt.IsZero() {
		fmt.Printf("  finished: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	if job.Error != "" {
		fmt.Printf("  error:    %s\n", job.Error)
	}
	if job.Status == core.JobCompleted {
		r := job.Result
		fmt.Printf("  pages:    %d/%d\n", r.PagesProcessed, r.TotalPages)
		fmt.Printf("  chunks:   %d, embeddings: %d, vectors: %d\n",
			r.ChunksCreated, r.EmbeddingsGenerated, r.VectorsStored)
		fmt.Printf("  elapsed:  %dms\n", r.ProcessingTimeMs)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
