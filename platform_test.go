package quill

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillstore/quill/ai/mock"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/ingestion"
	"github.com/quillstore/quill/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlatform(t *testing.T) {
	t.Run("create new platform", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "quill_db")
		p, err := NewPlatform(tmpDir, WithEmbedder(mock.NewMockEmbedder()))
		require.NoError(t, err)
		require.NotNil(t, p)
		defer p.Close()

		assert.NotNil(t, p.Jobs())
		assert.NotNil(t, p.Blobs())
		assert.NotNil(t, p.Vectors())
		assert.NotNil(t, p.Projects())
		assert.NotNil(t, p.Bus())
		assert.NotNil(t, p.Limiter())
	})

	t.Run("in-memory with empty path", func(t *testing.T) {
		p, err := NewPlatform("", WithEmbedder(mock.NewMockEmbedder()))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.NoError(t, p.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		p, err := NewPlatform(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, p)
	})
}

func TestPlatform_FactoryMethods(t *testing.T) {
	p, err := NewPlatform("", WithEmbedder(mock.NewMockEmbedder()))
	require.NoError(t, err)
	defer p.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := p.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := p.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		r, err := p.NewReembedder(nil, &bytes.Buffer{})
		require.NoError(t, err)
		require.NotNil(t, r)
	})
}

func TestPlatform_IngestAndSearch(t *testing.T) {
	ctx := context.Background()

	p, err := NewPlatform("", WithEmbedder(mock.NewMockEmbedder()))
	require.NoError(t, err)
	defer p.Close()

	err = p.Projects().CreateProject(ctx, &core.Project{
		ID:        "proj-1",
		OwnerID:   "owner-1",
		Tier:      core.TierPro.Name,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	pipeline, err := p.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	job, err := pipeline.IngestText(ctx, &ingestion.TextRequest{
		ProjectID:  "proj-1",
		Collection: "notes",
		Text:       "the platform wires every store together",
	})
	require.NoError(t, err)
	require.NotNil(t, job)

	// Text ingestion runs in the background; poll the ledger.
	deadline := time.Now().Add(5 * time.Second)
	for {
		current, err := p.Jobs().GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, current)
		if current.Status.Terminal() {
			assert.Equal(t, core.JobCompleted, current.Status)
			break
		}
		require.True(t, time.Now().Before(deadline), "job did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}

	searcher, err := p.NewSearcher()
	require.NoError(t, err)

	matches, err := searcher.Find(ctx, &search.Query{
		ProjectID:  "proj-1",
		Collection: "notes",
		Text:       "the platform wires every store together",
	})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Record.Text, "platform wires")
}
