package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
)

const (
	BackendQdrant   = "qdrant"
	BackendPGVector = "pgvector"
	BackendMemory   = "memory"
)

// Config selects and configures a vector index backend.
type Config struct {
	Backend     string
	URL         string
	APIKey      string
	DatabaseURL string
	// ScoreThreshold drops results scoring below it. Zero disables it.
	ScoreThreshold float64
	Timeout        time.Duration
}

// New returns the configured backend. The pgvector backend connects eagerly.
func New(ctx context.Context, cfg Config) (types.VectorIndex, error) {
	switch cfg.Backend {
	case BackendQdrant, "":
		return NewQdrant(QdrantConfig{
			URL:            cfg.URL,
			APIKey:         cfg.APIKey,
			ScoreThreshold: cfg.ScoreThreshold,
			Timeout:        cfg.Timeout,
		})
	case BackendPGVector:
		return NewPGVector(ctx, PGVectorConfig{
			ConnString:     cfg.DatabaseURL,
			ScoreThreshold: cfg.ScoreThreshold,
		})
	case BackendMemory:
		return NewMemory(MemoryConfig{ScoreThreshold: cfg.ScoreThreshold}), nil
	default:
		return nil, models.ConfigError("unknown vector store backend %q", cfg.Backend)
	}
}

// Reset discards every point in a collection by dropping and recreating it.
func Reset(ctx context.Context, index types.VectorIndex, name string, dimension int, metric models.Distance) error {
	if err := index.Drop(ctx, name); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return index.EnsureCollection(ctx, name, dimension, metric)
}

// maxCollectionName keeps the longest derived postgres identifier,
// askdocs_<name>_embedding_idx, within the 63 byte limit.
const maxCollectionName = 63 - len("askdocs_") - len("_embedding_idx")

func checkCollectionArgs(name string, dimension int, metric models.Distance) error {
	if name == "" {
		return models.ConfigError("collection name is required")
	}
	if len(name) > maxCollectionName {
		return models.ConfigError("collection name %q is longer than %d bytes", name, maxCollectionName)
	}
	if dimension <= 0 {
		return models.ConfigError("dimension must be positive, got %d", dimension)
	}
	if !metric.Valid() {
		return models.ConfigError("unsupported distance metric %q", metric)
	}
	return nil
}

func checkVector(context string, expected int, v []float32) error {
	if len(v) != expected {
		return &models.DimensionError{Context: context, Expected: expected, Got: len(v)}
	}
	return nil
}

func checkPoints(collection string, dimension int, points []models.IndexPoint) error {
	for i, p := range points {
		if p.ID == "" {
			return models.ConfigError("point %d in %s has no id", i, collection)
		}
		if err := checkVector(fmt.Sprintf("upsert into %s", collection), dimension, p.Vector); err != nil {
			return err
		}
	}
	return nil
}

func checkLimit(k int) error {
	if k < 1 {
		return models.ConfigError("search limit must be at least 1, got %d", k)
	}
	return nil
}

// similarity returns a higher-is-closer score for the metric: cosine
// similarity, inner product, or negated euclidean distance.
func similarity(metric models.Distance, a, b []float32) float64 {
	var dot, na, nb, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		sq += (x - y) * (x - y)
	}

	switch metric {
	case models.Dot:
		return dot
	case models.Euclidean:
		return -math.Sqrt(sq)
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
