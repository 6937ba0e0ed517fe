package retriever

import (
	"context"
	"strings"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/logger"
)

type RetrieverConfig struct {
	Collection string
	TopK       int
}

// Retriever embeds a query and searches the collection with it.
type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	index    types.VectorIndex
}

func New(embedder types.Embedder, index types.VectorIndex, config RetrieverConfig) (*Retriever, error) {
	if config.Collection == "" {
		return nil, models.ConfigError("retriever needs a collection name")
	}
	if config.TopK < 1 {
		return nil, models.ConfigError("default top_k must be at least 1, got %d", config.TopK)
	}
	return &Retriever{config: config, embedder: embedder, index: index}, nil
}

// Retrieve returns up to k results in rank order. k == 0 uses the configured
// default. An empty collection yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredResult, error) {
	return r.RetrieveFiltered(ctx, query, k, nil)
}

// RetrieveFiltered is Retrieve restricted to points whose metadata matches
// every key in filter.
func (r *Retriever) RetrieveFiltered(ctx context.Context, query string, k int, filter models.Filter) ([]models.ScoredResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.ConfigError("query is empty")
	}
	if k < 0 {
		return nil, models.ConfigError("top_k must be at least 1, got %d", k)
	}
	if k == 0 {
		k = r.config.TopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.index.Search(ctx, r.config.Collection, vector, k, filter)
	if err != nil {
		return nil, err
	}
	logger.Debug("retrieved %d results for %q", len(results), query)

	if results == nil {
		results = []models.ScoredResult{}
	}
	return results, nil
}

func (r *Retriever) Collection() string {
	return r.config.Collection
}
