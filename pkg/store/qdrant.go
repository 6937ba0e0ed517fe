package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/logger"
)

const (
	payloadContent  = "content"
	payloadMetadata = "metadata"
)

type QdrantConfig struct {
	URL            string
	APIKey         string
	ScoreThreshold float64
	Timeout        time.Duration
}

// Qdrant talks to a Qdrant server over its REST API. Payloads are stored as
// {"content": ..., "metadata": {...}} and filters match on metadata keys.
type Qdrant struct {
	config QdrantConfig
	client *http.Client
	cache  *registry
}

func NewQdrant(config QdrantConfig) (*Qdrant, error) {
	if config.URL == "" {
		config.URL = "http://localhost:6333"
	}
	if _, err := url.ParseRequestURI(config.URL); err != nil {
		return nil, models.ConfigError("invalid qdrant url %q", config.URL)
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	return &Qdrant{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		cache:  newRegistry(),
	}, nil
}

var qdrantDistances = map[models.Distance]string{
	models.Cosine:    "Cosine",
	models.Dot:       "Dot",
	models.Euclidean: "Euclid",
}

func distanceFromQdrant(s string) models.Distance {
	for d, name := range qdrantDistances {
		if strings.EqualFold(name, s) {
			return d
		}
	}
	return models.Cosine
}

type qdrantCollection struct {
	Status       string `json:"status"`
	PointsCount  int64  `json:"points_count"`
	VectorsCount int64  `json:"vectors_count"`
	Config       struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

func (q *Qdrant) EnsureCollection(ctx context.Context, name string, dimension int, metric models.Distance) error {
	if err := checkCollectionArgs(name, dimension, metric); err != nil {
		return err
	}

	info, err := q.describe(ctx, name)
	if err == nil {
		q.cache.put(name, info)
		if info.dimension != dimension {
			return &models.DimensionError{Context: "collection " + name, Expected: info.dimension, Got: dimension}
		}
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": qdrantDistances[metric],
		},
	}
	if _, err := q.do(ctx, http.MethodPut, collectionPath(name), body); err != nil {
		return err
	}
	logger.Debug("created qdrant collection %s (dimension %d, %s)", name, dimension, metric)

	q.cache.put(name, collectionInfo{dimension: dimension, metric: metric})
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, points []models.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}
	return q.cache.withCollection(ctx, collection, q.describe, func(info collectionInfo) error {
		return q.upsert(ctx, collection, info, points)
	})
}

func (q *Qdrant) upsert(ctx context.Context, collection string, info collectionInfo, points []models.IndexPoint) error {
	if err := checkPoints(collection, info.dimension, points); err != nil {
		return err
	}

	wire := make([]map[string]any, len(points))
	for i, p := range points {
		meta := p.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		wire[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				payloadContent:  p.Content,
				payloadMetadata: meta,
			},
		}
	}

	_, err := q.do(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", map[string]any{"points": wire})
	return err
}

func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, k int, filter models.Filter) ([]models.ScoredResult, error) {
	if err := checkLimit(k); err != nil {
		return nil, err
	}
	var results []models.ScoredResult
	err := q.cache.withCollection(ctx, collection, q.describe, func(info collectionInfo) error {
		var err error
		results, err = q.search(ctx, collection, info, vector, k, filter)
		return err
	})
	return results, err
}

func (q *Qdrant) search(ctx context.Context, collection string, info collectionInfo, vector []float32, k int, filter models.Filter) ([]models.ScoredResult, error) {
	if err := checkVector("search in "+collection, info.dimension, vector); err != nil {
		return nil, err
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   payloadMetadata + "." + key,
				"match": map[string]any{"value": value},
			})
		}
		body["filter"] = map[string]any{"must": must}
	}
	// Qdrant reports euclidean distance, lower is closer, so the threshold is
	// applied after negation instead.
	if q.config.ScoreThreshold != 0 && info.metric != models.Euclidean {
		body["score_threshold"] = q.config.ScoreThreshold
	}

	data, err := q.do(ctx, http.MethodPost, collectionPath(collection)+"/points/search", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				Content  string         `json:"content"`
				Metadata map[string]any `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &models.ProviderError{Provider: "qdrant", Op: "search decode", Err: err}
	}

	results := make([]models.ScoredResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		score := r.Score
		if info.metric == models.Euclidean {
			score = -score
			if q.config.ScoreThreshold != 0 && score < q.config.ScoreThreshold {
				continue
			}
		}
		results = append(results, models.ScoredResult{
			ID:       fmt.Sprint(r.ID),
			Content:  r.Payload.Content,
			Score:    score,
			Metadata: r.Payload.Metadata,
		})
	}
	return results, nil
}

func (q *Qdrant) Stats(ctx context.Context, name string) (models.CollectionStats, error) {
	c, err := q.fetch(ctx, name)
	if err != nil {
		return models.CollectionStats{}, err
	}
	vectors := c.VectorsCount
	if vectors == 0 {
		vectors = c.PointsCount
	}
	return models.CollectionStats{
		Name:        name,
		PointCount:  c.PointsCount,
		VectorCount: vectors,
		Status:      c.Status,
	}, nil
}

func (q *Qdrant) Drop(ctx context.Context, name string) error {
	q.cache.forget(name)

	data, err := q.do(ctx, http.MethodDelete, collectionPath(name), nil)
	if err != nil {
		return err
	}

	var resp struct {
		Result bool `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err == nil && !resp.Result {
		return &models.NotFoundError{Kind: "collection", Name: name}
	}
	return nil
}

func (q *Qdrant) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *Qdrant) describe(ctx context.Context, name string) (collectionInfo, error) {
	c, err := q.fetch(ctx, name)
	if err != nil {
		return collectionInfo{}, err
	}
	return collectionInfo{
		dimension: c.Config.Params.Vectors.Size,
		metric:    distanceFromQdrant(c.Config.Params.Vectors.Distance),
	}, nil
}

func (q *Qdrant) fetch(ctx context.Context, name string) (*qdrantCollection, error) {
	data, err := q.do(ctx, http.MethodGet, collectionPath(name), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result qdrantCollection `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &models.ProviderError{Provider: "qdrant", Op: "collection decode", Err: err}
	}
	return &resp.Result, nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

// do sends one request and maps transport failures and status codes onto the
// error taxonomy. A 404 on a collection path is NotFoundError and a 5xx is
// ConnectionError.
func (q *Qdrant) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	endpoint := strings.TrimRight(q.config.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.config.APIKey != "" {
		req.Header.Set("api-key", q.config.APIKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &models.ConnectionError{Target: q.config.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.ConnectionError{Target: q.config.URL, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		name, _, _ := strings.Cut(strings.TrimPrefix(path, "/collections/"), "/")
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		return nil, &models.NotFoundError{Kind: "collection", Name: name}
	case resp.StatusCode >= 500:
		return nil, &models.ConnectionError{
			Target: q.config.URL,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	case resp.StatusCode >= 400:
		return nil, &models.ProviderError{
			Provider: "qdrant",
			Op:       method + " " + path,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	return data, nil
}
