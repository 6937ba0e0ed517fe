package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/ingest"
	"github.com/xhad/askdocs/pkg/metrics"
	"github.com/xhad/askdocs/pkg/processor"
	"github.com/xhad/askdocs/pkg/store"
)

type stubEmbedder struct {
	dim     int
	failOn  string
	failErr error
	batches []int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.batches = append(s.batches, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if s.failOn != "" && strings.Contains(t, s.failOn) {
			return nil, s.failErr
		}
		v := make([]float32, s.dim)
		v[len(t)%s.dim] = 1
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }

func newPipeline(t *testing.T, emb *stubEmbedder, index *store.Memory, progress func(done, total int)) *ingest.Pipeline {
	t.Helper()
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 40, ChunkOverlap: 5})
	require.NoError(t, err)

	pipe, err := ingest.New(ingest.PipelineConfig{
		Collection: "docs",
		Dimension:  4,
		BatchSize:  2,
		OnProgress: progress,
	}, p, emb, index, metrics.New())
	require.NoError(t, err)
	return pipe
}

func doc(source, content string) models.Document {
	return models.Document{Content: content, Metadata: map[string]any{models.MetaSource: source}}
}

func longText(word string) string {
	return strings.Repeat(word+" sentence goes here. ", 8)
}

func TestRunIndexesAllChunks(t *testing.T) {
	ctx := context.Background()
	index := store.NewMemory(store.MemoryConfig{})
	emb := &stubEmbedder{dim: 4}

	var progress [][2]int
	pipe := newPipeline(t, emb, index, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})

	report, err := pipe.Run(ctx, []models.Document{
		doc("a.md", longText("alpha")),
		doc("b.md", "Short one."),
		doc("blank.md", "   "),
	}, ingest.Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Documents)
	assert.Greater(t, report.Chunks, 2)
	assert.Equal(t, report.Chunks, report.Indexed)
	assert.Zero(t, report.Failures)

	for _, n := range emb.batches {
		assert.LessOrEqual(t, n, 2)
	}
	require.NotEmpty(t, progress)
	assert.Equal(t, [2]int{report.Chunks, report.Chunks}, progress[len(progress)-1])

	stats, err := index.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(report.Chunks), stats.PointCount)

	results, err := index.Search(ctx, "docs", []float32{1, 1, 1, 1}, 100, models.Filter{models.MetaSource: "b.md"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Short one.", results[0].Content)
	assert.Equal(t, 0, results[0].Metadata[models.MetaChunkIndex])
	assert.Equal(t, 1, results[0].Metadata[models.MetaTotalChunks])
}

func TestRunSkipsFailingDocuments(t *testing.T) {
	ctx := context.Background()
	index := store.NewMemory(store.MemoryConfig{})
	emb := &stubEmbedder{
		dim:     4,
		failOn:  "POISON",
		failErr: &models.ProviderError{Provider: "openai", Op: "embed", Err: errors.New("content rejected")},
	}
	pipe := newPipeline(t, emb, index, nil)

	report, err := pipe.Run(ctx, []models.Document{
		doc("good.md", "Good content."),
		doc("bad.md", "POISON content."),
		doc("also-good.md", "More good content."),
	}, ingest.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 2, report.Indexed)

	stats, err := index.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.PointCount)
}

func TestRunAbortsOnFatalErrors(t *testing.T) {
	tests := []struct {
		name   string
		emb    *stubEmbedder
		target error
	}{
		{
			name: "connection",
			emb: &stubEmbedder{dim: 4, failOn: "second",
				failErr: &models.ConnectionError{Target: "http://localhost:1", Err: errors.New("refused")}},
			target: models.ErrConnection,
		},
		{
			name:   "dimension",
			emb:    &stubEmbedder{dim: 3},
			target: models.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe := newPipeline(t, tt.emb, store.NewMemory(store.MemoryConfig{}), nil)

			report, err := pipe.Run(context.Background(), []models.Document{
				doc("one.md", "first document"),
				doc("two.md", "second document"),
				doc("three.md", "third document"),
			}, ingest.Options{})
			assert.ErrorIs(t, err, tt.target)
			assert.Less(t, report.Indexed, 3)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipe := newPipeline(t, &stubEmbedder{dim: 4}, store.NewMemory(store.MemoryConfig{}), nil)
	_, err := pipe.Run(ctx, []models.Document{doc("a.md", "text")}, ingest.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunReset(t *testing.T) {
	ctx := context.Background()
	index := store.NewMemory(store.MemoryConfig{})
	pipe := newPipeline(t, &stubEmbedder{dim: 4}, index, nil)

	_, err := pipe.Run(ctx, []models.Document{doc("a.md", "old"), doc("b.md", "older")}, ingest.Options{})
	require.NoError(t, err)

	report, err := pipe.Run(ctx, []models.Document{doc("c.md", "new")}, ingest.Options{Reset: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)

	stats, err := index.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PointCount)
}

func TestRunRejectsExistingCollectionWithOtherDimension(t *testing.T) {
	ctx := context.Background()
	index := store.NewMemory(store.MemoryConfig{})
	require.NoError(t, index.EnsureCollection(ctx, "docs", 16, models.Cosine))

	pipe := newPipeline(t, &stubEmbedder{dim: 4}, index, nil)
	_, err := pipe.Run(ctx, []models.Document{doc("a.md", "text")}, ingest.Options{})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}
