package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/store"
)

func point(content, source string, vector ...float32) models.IndexPoint {
	return models.IndexPoint{
		ID:       uuid.NewString(),
		Vector:   vector,
		Content:  content,
		Metadata: map[string]any{models.MetaSource: source},
	}
}

type suiteOptions struct {
	// newestFirstOnTies is set for backends that order equal scores by
	// insertion recency themselves.
	newestFirstOnTies bool
}

// runIndexSuite checks the behaviour every backend must share.
func runIndexSuite(t *testing.T, idx types.VectorIndex, opts suiteOptions) {
	ctx := context.Background()
	const name = "suite"

	t.Run("ensure is idempotent and checks dimension", func(t *testing.T) {
		require.NoError(t, idx.EnsureCollection(ctx, name, 3, models.Cosine))
		require.NoError(t, idx.EnsureCollection(ctx, name, 3, models.Cosine))

		err := idx.EnsureCollection(ctx, name, 4, models.Cosine)
		assert.ErrorIs(t, err, models.ErrDimensionMismatch)
	})

	t.Run("empty collection yields no results", func(t *testing.T) {
		results, err := idx.Search(ctx, name, []float32{1, 0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	a := point("alpha", "a.md", 1, 0, 0)
	b := point("beta", "b.md", 0, 1, 0)
	c := point("gamma", "c.md", 0.7, 0.7, 0)

	t.Run("upsert then search", func(t *testing.T) {
		require.NoError(t, idx.Upsert(ctx, name, []models.IndexPoint{a, b, c}))

		results, err := idx.Search(ctx, name, a.Vector, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, a.ID, results[0].ID)
		assert.Equal(t, "alpha", results[0].Content)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
		assert.Equal(t, "a.md", results[0].Source())

		results, err = idx.Search(ctx, name, a.Vector, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, a.ID, results[0].ID)
		assert.Equal(t, c.ID, results[1].ID)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	})

	t.Run("filter on metadata", func(t *testing.T) {
		results, err := idx.Search(ctx, name, a.Vector, 3, models.Filter{models.MetaSource: "b.md"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, b.ID, results[0].ID)
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		replaced := b
		replaced.Content = "beta v2"
		require.NoError(t, idx.Upsert(ctx, name, []models.IndexPoint{replaced}))

		stats, err := idx.Stats(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.PointCount)

		results, err := idx.Search(ctx, name, b.Vector, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "beta v2", results[0].Content)
	})

	t.Run("ties prefer the newest point", func(t *testing.T) {
		if !opts.newestFirstOnTies {
			t.Skip("backend does not order ties")
		}
		older := point("older", "tie.md", 0, 0, 1)
		newer := point("newer", "tie.md", 0, 0, 1)
		require.NoError(t, idx.Upsert(ctx, name, []models.IndexPoint{older}))
		require.NoError(t, idx.Upsert(ctx, name, []models.IndexPoint{newer}))

		results, err := idx.Search(ctx, name, []float32{0, 0, 1}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, newer.ID, results[0].ID)
		assert.Equal(t, older.ID, results[1].ID)
	})

	t.Run("dimension is enforced", func(t *testing.T) {
		before, err := idx.Stats(ctx, name)
		require.NoError(t, err)

		bad := point("bad", "bad.md", 1, 0)
		err = idx.Upsert(ctx, name, []models.IndexPoint{point("ok", "ok.md", 1, 1, 1), bad})
		assert.ErrorIs(t, err, models.ErrDimensionMismatch)

		stats, err := idx.Stats(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, before.PointCount, stats.PointCount, "a rejected batch leaves nothing behind")

		_, err = idx.Search(ctx, name, []float32{1, 0}, 1, nil)
		assert.ErrorIs(t, err, models.ErrDimensionMismatch)
	})

	t.Run("limit must be positive", func(t *testing.T) {
		_, err := idx.Search(ctx, name, a.Vector, 0, nil)
		assert.ErrorIs(t, err, models.ErrConfiguration)
	})

	t.Run("absent collection", func(t *testing.T) {
		_, err := idx.Search(ctx, "missing", a.Vector, 1, nil)
		assert.ErrorIs(t, err, models.ErrNotFound)

		err = idx.Upsert(ctx, "missing", []models.IndexPoint{a})
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = idx.Stats(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)

		err = idx.Drop(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("reset empties the collection", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx, idx, name, 3, models.Cosine))

		stats, err := idx.Stats(ctx, name)
		require.NoError(t, err)
		assert.Zero(t, stats.PointCount)

		results, err := idx.Search(ctx, name, a.Vector, 3, nil)
		require.NoError(t, err)
		assert.Empty(t, results)

		require.NoError(t, store.Reset(ctx, idx, "fresh", 3, models.Cosine))
	})
}
