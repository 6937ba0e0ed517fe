package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/agent"
	"github.com/xhad/askdocs/pkg/config"
	"github.com/xhad/askdocs/pkg/ingest"
	"github.com/xhad/askdocs/pkg/llm"
	"github.com/xhad/askdocs/pkg/logger"
	"github.com/xhad/askdocs/pkg/metrics"
	"github.com/xhad/askdocs/pkg/processor"
	"github.com/xhad/askdocs/pkg/prompt"
	"github.com/xhad/askdocs/pkg/retriever"
	"github.com/xhad/askdocs/pkg/store"
)

// app holds the components every command is built from.
type app struct {
	config    *config.Config
	index     types.VectorIndex
	embedder  *llm.Embedder
	processor *processor.Processor
	agent     *agent.Agent
	metrics   *metrics.Metrics
}

// loadApp reads and validates the configuration, then wires the pipeline.
// It fails before touching any service when the configuration is invalid.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	logger.Debug("config: %s", cfg)

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	index, err := store.New(ctx, store.Config{
		Backend:        cfg.VectorStore.Backend,
		URL:            cfg.VectorStore.URL,
		APIKey:         cfg.VectorStore.APIKey,
		DatabaseURL:    cfg.VectorStore.DatabaseURL,
		ScoreThreshold: cfg.VectorStore.ScoreThreshold,
		Timeout:        time.Duration(cfg.VectorStore.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	r, err := retriever.New(embedder, index, retriever.RetrieverConfig{
		Collection: cfg.VectorStore.Collection,
		TopK:       cfg.Agent.TopK,
	})
	if err != nil {
		index.Close()
		return nil, err
	}

	assembler, err := prompt.NewAssembler(prompt.AssemblerConfig{
		MaxContextLength: cfg.Agent.MaxContextLength,
		HistoryTurns:     cfg.Agent.HistoryTurns,
	})
	if err != nil {
		index.Close()
		return nil, err
	}

	m := metrics.New()
	ag := agent.New(agent.AgentConfig{
		Collection: cfg.VectorStore.Collection,
		Dimension:  cfg.Embedding.Dimension,
		Metric:     cfg.Distance(),
		MaxHistory: cfg.Agent.MaxHistory,
	}, r, assembler, chatEngine, index, m)

	return &app{
		config:    cfg,
		index:     index,
		embedder:  embedder,
		processor: proc,
		agent:     ag,
		metrics:   m,
	}, nil
}

// pipeline returns an ingestion pipeline reporting chunk progress to
// onProgress, which may be nil.
func (a *app) pipeline(onProgress func(done, total int)) (*ingest.Pipeline, error) {
	return ingest.New(ingest.PipelineConfig{
		Collection: a.config.VectorStore.Collection,
		Dimension:  a.config.Embedding.Dimension,
		Metric:     a.config.Distance(),
		BatchSize:  a.config.Processor.BatchSize,
		OnProgress: onProgress,
	}, a.processor, a.embedder, a.index, a.metrics)
}

func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		logger.Warn("closing vector store: %v", err)
	}
}
