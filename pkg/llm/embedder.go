package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/xhad/askdocs/internal/models"
)

// EmbedderConfig represents the configuration for an embedding client.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
	BatchSize int
}

// Embedder turns text into fixed-dimension vectors and checks every vector
// the provider returns.
type Embedder struct {
	config   EmbedderConfig
	embedder embeddings.Embedder
}

// NewEmbedderWithConfig builds an Embedder backed by the configured provider.
func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Dimension <= 0 {
		return nil, models.ConfigError("embedding dimension must be positive, got %d", config.Dimension)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	client, err := newProviderClient(providerOptions{
		Provider:       config.Provider,
		BaseURL:        config.BaseURL,
		APIKey:         config.APIKey,
		EmbeddingModel: config.Model,
	})
	if err != nil {
		return nil, err
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, &models.ProviderError{Provider: config.Provider, Op: "init embedder", Err: err}
	}

	return &Embedder{config: config, embedder: emb}, nil
}

// NewEmbedder wraps an existing langchaingo embedder.
func NewEmbedder(emb embeddings.Embedder, config EmbedderConfig) (*Embedder, error) {
	if config.Dimension <= 0 {
		return nil, models.ConfigError("embedding dimension must be positive, got %d", config.Dimension)
	}
	return &Embedder{config: config, embedder: emb}, nil
}

func (e *Embedder) Dimension() int {
	return e.config.Dimension
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classify(e.providerName(), "embed", e.config.BaseURL, err)
	}

	if len(vectors) != len(texts) {
		return nil, &models.ProviderError{
			Provider: e.providerName(),
			Op:       "embed",
			Err:      fmt.Errorf("got %d embeddings for %d inputs", len(vectors), len(texts)),
		}
	}

	for i, v := range vectors {
		if len(v) != e.config.Dimension {
			return nil, &models.DimensionError{
				Context:  fmt.Sprintf("embedding %d", i),
				Expected: e.config.Dimension,
				Got:      len(v),
			}
		}
	}

	return vectors, nil
}

func (e *Embedder) providerName() string {
	if e.config.Provider == "" {
		return ProviderOpenAI
	}
	return e.config.Provider
}
