package llm

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/askdocs/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// providerClient is what both langchaingo backends give us: chat completion
// and raw embedding creation on one client.
type providerClient interface {
	llms.Model
	embeddings.EmbedderClient
}

type providerOptions struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
}

func newProviderClient(opts providerOptions) (providerClient, error) {
	switch opts.Provider {
	case ProviderOpenAI, "":
		options := []openai.Option{openai.WithToken(opts.APIKey)}
		if opts.BaseURL != "" {
			options = append(options, openai.WithBaseURL(opts.BaseURL))
		}
		if opts.Model != "" {
			options = append(options, openai.WithModel(opts.Model))
		}
		if opts.EmbeddingModel != "" {
			options = append(options, openai.WithEmbeddingModel(opts.EmbeddingModel))
		}
		client, err := openai.New(options...)
		if err != nil {
			return nil, &models.ProviderError{Provider: ProviderOpenAI, Op: "init", Err: err}
		}
		return client, nil
	case ProviderOllama:
		model := opts.Model
		if opts.EmbeddingModel != "" {
			model = opts.EmbeddingModel
		}
		options := []ollama.Option{ollama.WithModel(model)}
		if opts.BaseURL != "" {
			options = append(options, ollama.WithServerURL(opts.BaseURL))
		}
		client, err := ollama.New(options...)
		if err != nil {
			return nil, &models.ProviderError{Provider: ProviderOllama, Op: "init", Err: err}
		}
		return client, nil
	default:
		return nil, models.ConfigError("unknown provider %q", opts.Provider)
	}
}

// classify maps a provider call failure onto the error taxonomy. Context
// errors pass through untouched.
func classify(provider, op, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &models.ConnectionError{Target: target, Err: err}
	}
	return &models.ProviderError{Provider: provider, Op: op, Err: err}
}
