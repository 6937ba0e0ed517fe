package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xhad/askdocs/internal/models"
)

type MemoryConfig struct {
	ScoreThreshold float64
}

type memoryPoint struct {
	point models.IndexPoint
	seq   uint64
}

type memoryCollection struct {
	dimension int
	metric    models.Distance
	points    map[string]memoryPoint
}

// Memory is an in-process index with brute-force search. It backs tests and
// single-shot runs that do not need persistence.
type Memory struct {
	config      MemoryConfig
	mu          sync.RWMutex
	seq         uint64
	collections map[string]*memoryCollection
}

func NewMemory(config MemoryConfig) *Memory {
	return &Memory{
		config:      config,
		collections: make(map[string]*memoryCollection),
	}
}

func (m *Memory) EnsureCollection(ctx context.Context, name string, dimension int, metric models.Distance) error {
	if err := checkCollectionArgs(name, dimension, metric); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collections[name]; ok {
		if c.dimension != dimension {
			return &models.DimensionError{Context: "collection " + name, Expected: c.dimension, Got: dimension}
		}
		return nil
	}

	m.collections[name] = &memoryCollection{
		dimension: dimension,
		metric:    metric,
		points:    make(map[string]memoryPoint),
	}
	return nil
}

// Upsert validates the whole batch before applying any of it.
func (m *Memory) Upsert(ctx context.Context, collection string, points []models.IndexPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return &models.NotFoundError{Kind: "collection", Name: collection}
	}
	if err := checkPoints(collection, c.dimension, points); err != nil {
		return err
	}

	for _, p := range points {
		m.seq++
		p.Vector = append([]float32(nil), p.Vector...)
		p.Metadata = models.CloneMetadata(p.Metadata)
		c.points[p.ID] = memoryPoint{point: p, seq: m.seq}
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, collection string, vector []float32, k int, filter models.Filter) ([]models.ScoredResult, error) {
	if err := checkLimit(k); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, &models.NotFoundError{Kind: "collection", Name: collection}
	}
	if err := checkVector("search in "+collection, c.dimension, vector); err != nil {
		return nil, err
	}

	type hit struct {
		result models.ScoredResult
		seq    uint64
	}
	var hits []hit
	for _, mp := range c.points {
		if !matches(mp.point.Metadata, filter) {
			continue
		}
		score := similarity(c.metric, vector, mp.point.Vector)
		if m.config.ScoreThreshold != 0 && score < m.config.ScoreThreshold {
			continue
		}
		hits = append(hits, hit{
			result: models.ScoredResult{
				ID:       mp.point.ID,
				Content:  mp.point.Content,
				Score:    score,
				Metadata: models.CloneMetadata(mp.point.Metadata),
			},
			seq: mp.seq,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		return hits[i].seq > hits[j].seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	results := make([]models.ScoredResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, nil
}

func matches(meta map[string]any, filter models.Filter) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (m *Memory) Stats(ctx context.Context, name string) (models.CollectionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[name]
	if !ok {
		return models.CollectionStats{}, &models.NotFoundError{Kind: "collection", Name: name}
	}
	n := int64(len(c.points))
	return models.CollectionStats{Name: name, PointCount: n, VectorCount: n, Status: "green"}, nil
}

func (m *Memory) Drop(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; !ok {
		return &models.NotFoundError{Kind: "collection", Name: name}
	}
	delete(m.collections, name)
	return nil
}

func (m *Memory) Close() error { return nil }
