package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/quillstore/quill/ai/mock"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSearcher(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(stores.Vectors, embedder)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(stores.Vectors, embedder, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(stores.Vectors, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil vector store", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrVectorStoreRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(stores.Vectors, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestSearcherFind(t *testing.T) {
	ctx := context.Background()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := mock.NewMockEmbedder()
	searcher, err := NewSearcher(stores.Vectors, embedder)
	require.NoError(t, err)

	expires := time.Now().UTC().Add(time.Hour)
	seed := func(t *testing.T, text string) {
		t.Helper()
		vec, err := embedder.EmbedText(ctx, text)
		require.NoError(t, err)
		err = stores.Vectors.UpsertBatch(ctx, "proj-1", "notes", []*core.VectorRecord{{
			Text:      text,
			Embedding: vec,
			ExpiresAt: expires,
		}})
		require.NoError(t, err)
	}
	seed(t, "the quarterly revenue report")
	seed(t, "minutes from the standup meeting")
	seed(t, "a recipe for sourdough bread")

	t.Run("exact text is the best match", func(t *testing.T) {
		matches, err := searcher.Find(ctx, &Query{
			ProjectID:  "proj-1",
			Collection: "notes",
			Text:       "the quarterly revenue report",
		})
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		assert.Equal(t, "the quarterly revenue report", matches[0].Record.Text)
		assert.InDelta(t, 1.0, matches[0].Score, 0.001)
	})

	t.Run("results ordered by score", func(t *testing.T) {
		matches, err := searcher.Find(ctx, &Query{
			ProjectID:  "proj-1",
			Collection: "notes",
			Text:       "a recipe for sourdough bread",
			MinScore:   -1,
		})
		require.NoError(t, err)
		for i := 1; i < len(matches); i++ {
			assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
		}
	})

	t.Run("limit caps result count", func(t *testing.T) {
		matches, err := searcher.Find(ctx, &Query{
			ProjectID:  "proj-1",
			Collection: "notes",
			Text:       "meeting",
			MinScore:   -1,
			Limit:      1,
		})
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("empty query rejected", func(t *testing.T) {
		_, err := searcher.Find(ctx, &Query{
			ProjectID:  "proj-1",
			Collection: "notes",
			Text:       "   ",
		})
		assert.Equal(t, ErrEmptyQuery, err)
	})

	t.Run("unknown collection returns no matches", func(t *testing.T) {
		matches, err := searcher.Find(ctx, &Query{
			ProjectID:  "proj-1",
			Collection: "nothing-here",
			Text:       "anything",
		})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("embedder failure surfaces", func(t *testing.T) {
		failing := mock.NewMockEmbedder()
		failing.EmbedTextFunc = func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("model offline")
		}
		s, err := NewSearcher(stores.Vectors, failing)
		require.NoError(t, err)

		_, err = s.Find(ctx, &Query{ProjectID: "proj-1", Collection: "notes", Text: "hello"})
		assert.ErrorContains(t, err, "model offline")
	})
}

type recordingMonitor struct {
	started    string
	dimensions int
	finished   int
}

func (m *recordingMonitor) Start(query string)            { m.started = query }
func (m *recordingMonitor) AfterQueryEmbedding(dims int)  { m.dimensions = dims }
func (m *recordingMonitor) Finish(ms []*core.VectorMatch) { m.finished = len(ms) }

func TestSearcherMonitor(t *testing.T) {
	ctx := context.Background()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := mock.NewMockEmbedder()
	searcher, err := NewSearcher(stores.Vectors, embedder)
	require.NoError(t, err)

	vec, err := embedder.EmbedText(ctx, "observability matters")
	require.NoError(t, err)
	err = stores.Vectors.UpsertBatch(ctx, "proj-1", "notes", []*core.VectorRecord{{
		Text:      "observability matters",
		Embedding: vec,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}})
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	matches, err := searcher.FindWithMonitor(ctx, &Query{
		ProjectID:  "proj-1",
		Collection: "notes",
		Text:       "observability matters",
	}, monitor)
	require.NoError(t, err)

	assert.Equal(t, "observability matters", monitor.started)
	assert.Equal(t, 384, monitor.dimensions)
	assert.Equal(t, len(matches), monitor.finished)
}
