// Package ingest chunks, embeds and indexes documents.
package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/logger"
	"github.com/xhad/askdocs/pkg/metrics"
	"github.com/xhad/askdocs/pkg/processor"
	"github.com/xhad/askdocs/pkg/store"
)

type PipelineConfig struct {
	Collection string
	Dimension  int
	Metric     models.Distance
	BatchSize  int
	// OnProgress is called after every indexed batch with chunk counts.
	OnProgress func(done, total int)
}

type Options struct {
	Reset bool
}

// Report summarises a run. Failures counts skipped documents.
type Report struct {
	Documents int
	Chunks    int
	Indexed   int
	Failures  int
}

// Pipeline runs batches sequentially so at most one embedding call and one
// upsert are outstanding at a time.
type Pipeline struct {
	config    PipelineConfig
	processor *processor.Processor
	embedder  types.Embedder
	index     types.VectorIndex
	metrics   *metrics.Metrics
	newID     func() string
}

func New(config PipelineConfig, p *processor.Processor, e types.Embedder, index types.VectorIndex, m *metrics.Metrics) (*Pipeline, error) {
	if config.Collection == "" {
		return nil, models.ConfigError("ingest needs a collection name")
	}
	if config.Dimension <= 0 {
		config.Dimension = e.Dimension()
	}
	if config.Metric == "" {
		config.Metric = models.Cosine
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	return &Pipeline{
		config:    config,
		processor: p,
		embedder:  e,
		index:     index,
		metrics:   m,
		newID:     uuid.NewString,
	}, nil
}

// fatal reports errors that would fail every remaining document too.
func fatal(err error) bool {
	return errors.Is(err, models.ErrConnection) ||
		errors.Is(err, models.ErrDimensionMismatch) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Run indexes docs. A document whose chunks fail to embed or upsert is logged
// and skipped; connection, dimension, missing-collection and cancellation
// errors stop the run and are returned with the partial report.
func (p *Pipeline) Run(ctx context.Context, docs []models.Document, opts Options) (Report, error) {
	report := Report{Documents: len(docs)}

	if opts.Reset {
		logger.Info("resetting collection %s", p.config.Collection)
		if err := store.Reset(ctx, p.index, p.config.Collection, p.config.Dimension, p.config.Metric); err != nil {
			return report, err
		}
	} else if err := p.index.EnsureCollection(ctx, p.config.Collection, p.config.Dimension, p.config.Metric); err != nil {
		return report, err
	}

	type group struct {
		source string
		chunks []models.Chunk
	}
	var groups []group
	for _, doc := range docs {
		chunks := p.processor.Process([]models.Document{doc})
		report.Chunks += len(chunks)
		groups = append(groups, group{source: doc.Source(), chunks: chunks})
	}
	logger.Info("split %d documents into %d chunks", len(docs), report.Chunks)

	done := 0
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		indexed, err := p.indexDocument(ctx, g.chunks, func(n int) {
			done += n
			if p.config.OnProgress != nil {
				p.config.OnProgress(done, report.Chunks)
			}
		})
		report.Indexed += indexed
		p.metrics.AddIngested(indexed)
		if err == nil {
			continue
		}
		if fatal(err) {
			return report, err
		}

		report.Failures++
		p.metrics.IngestFailed()
		logger.Warn("skipping %s: %v", g.source, err)
		// count the document's remaining chunks as processed
		if rest := len(g.chunks) - indexed; rest > 0 {
			done += rest
			if p.config.OnProgress != nil {
				p.config.OnProgress(done, report.Chunks)
			}
		}
	}

	logger.Info("indexed %d of %d chunks into %s", report.Indexed, report.Chunks, p.config.Collection)
	return report, nil
}

func (p *Pipeline) indexDocument(ctx context.Context, chunks []models.Chunk, progress func(int)) (int, error) {
	indexed := 0
	for start := 0; start < len(chunks); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, err
		}

		points := make([]models.IndexPoint, len(batch))
		for i, c := range batch {
			points[i] = models.IndexPoint{
				ID:       p.newID(),
				Vector:   vectors[i],
				Content:  c.Content,
				Metadata: c.Metadata,
			}
		}
		if err := p.index.Upsert(ctx, p.config.Collection, points); err != nil {
			return indexed, err
		}

		indexed += len(batch)
		logger.Debug("indexed batch of %d chunks", len(batch))
		progress(len(batch))
	}
	return indexed, nil
}
