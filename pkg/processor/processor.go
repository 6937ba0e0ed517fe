package processor

import (
	"strings"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/logger"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type Processor struct {
	config ProcessorConfig
}

// NewWithConfig validates the chunking parameters once so Process cannot fail
// on configuration.
func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
	}
	if _, err := Split("x", config.ChunkSize, config.ChunkOverlap); err != nil {
		return nil, err
	}

	return &Processor{
		config: config,
	}, nil
}

// Process splits every document into chunks. Chunk metadata is the parent's
// metadata plus a dense 0-based chunkIndex and totalChunks. Blank documents
// produce no chunks.
func (p *Processor) Process(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk

	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			logger.Debug("skipping empty document %s", doc.Source())
			continue
		}

		parts, err := Split(doc.Content, p.config.ChunkSize, p.config.ChunkOverlap)
		if err != nil {
			// unreachable: parameters were validated in NewWithConfig
			logger.Warn("failed to split %s: %v", doc.Source(), err)
			continue
		}

		for i, part := range parts {
			meta := models.CloneMetadata(doc.Metadata)
			meta[models.MetaChunkIndex] = i
			meta[models.MetaTotalChunks] = len(parts)

			chunks = append(chunks, models.Chunk{
				Content:  part,
				Metadata: meta,
			})
		}
		logger.Debug("split %s into %d chunks", doc.Source(), len(parts))
	}

	return chunks
}

func (p *Processor) Config() ProcessorConfig {
	return p.config
}
