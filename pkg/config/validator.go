package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/xhad/askdocs/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	knownProviders = map[string]bool{"openai": true, "ollama": true}
	knownBackends  = map[string]bool{"qdrant": true, "pgvector": true, "memory": true}
)

// Check validates the configuration and joins every problem into a single
// error matching models.ErrConfiguration. It returns nil for a valid config.
func (c *Config) Check() error {
	verrs := c.Validate()
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(verrs)+1)
	errs = append(errs, models.ErrConfiguration)
	for _, e := range verrs {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if !knownProviders[c.LLM.Provider] {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q (want openai or ollama)", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "API key is required (set LLM_API_KEY)",
		})
	}

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "base URL is required",
		})
	} else if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 32768 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 32768",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Embedding config
	if !knownProviders[c.Embedding.Provider] {
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q (want openai or ollama)", c.Embedding.Provider),
		})
	}

	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.api_key",
			Message: "API key is required (set EMBEDDING_API_KEY or LLM_API_KEY)",
		})
	}

	if c.Embedding.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimension",
			Message: "dimension must be positive",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Vector store config
	if !knownBackends[c.VectorStore.Backend] {
		errors = append(errors, ValidationError{
			Field:   "vector_store.backend",
			Message: fmt.Sprintf("unknown backend %q (want qdrant, pgvector or memory)", c.VectorStore.Backend),
		})
	}

	if c.VectorStore.Backend == "qdrant" {
		if _, err := url.ParseRequestURI(c.VectorStore.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "vector_store.url",
				Message: "invalid Qdrant URL",
			})
		}
	}

	if c.VectorStore.Backend == "pgvector" {
		if c.VectorStore.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "vector_store.database_url",
				Message: "database URL is required for pgvector (set DATABASE_URL)",
			})
		} else if _, err := url.Parse(c.VectorStore.DatabaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "vector_store.database_url",
				Message: "invalid database URL",
			})
		}
	}

	if c.VectorStore.Collection == "" {
		errors = append(errors, ValidationError{
			Field:   "vector_store.collection",
			Message: "collection name is required",
		})
	}

	if !models.Distance(c.VectorStore.Distance).Valid() {
		errors = append(errors, ValidationError{
			Field:   "vector_store.distance",
			Message: fmt.Sprintf("unknown distance %q (want cosine, dot or euclid)", c.VectorStore.Distance),
		})
	}

	// Validate Processor config
	if info, err := os.Stat(c.Processor.DocsPath); err != nil || !info.IsDir() {
		errors = append(errors, ValidationError{
			Field:   "processor.docs_path",
			Message: fmt.Sprintf("docs path %q does not exist", c.Processor.DocsPath),
		})
	}

	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Processor.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Agent config
	if c.Agent.MaxContextLength <= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "agent.max_context_length",
			Message: "max_context_length must be greater than chunk_size",
		})
	}

	if c.Agent.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Agent.MaxHistory < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.max_history",
			Message: "max_history must be positive",
		})
	}

	if c.Agent.HistoryTurns < 0 || c.Agent.HistoryTurns > c.Agent.MaxHistory {
		errors = append(errors, ValidationError{
			Field:   "agent.history_turns",
			Message: "history_turns must be between 0 and max_history",
		})
	}

	return errors
}
