package types

import (
	"context"

	"github.com/xhad/askdocs/internal/models"
)

// Core interfaces

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorIndex stores (vector, payload) points in named collections.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dimension int, metric models.Distance) error
	Upsert(ctx context.Context, collection string, points []models.IndexPoint) error
	Search(ctx context.Context, collection string, vector []float32, k int, filter models.Filter) ([]models.ScoredResult, error)
	Stats(ctx context.Context, name string) (models.CollectionStats, error)
	Drop(ctx context.Context, name string) error
	Close() error
}

type Generator interface {
	Generate(ctx context.Context, messages []models.Message) (string, error)
}

type Loader interface {
	LoadAll(ctx context.Context) ([]models.Document, error)
}
