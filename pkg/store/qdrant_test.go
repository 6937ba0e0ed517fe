package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/store"
)

type fakePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
	seq     int
}

type fakeCollection struct {
	size     int
	distance string
	points   map[string]fakePoint
}

// fakeQdrant implements the slice of the Qdrant REST API the adapter uses.
// Only cosine scoring is supported. Equal scores come back newest first, an
// ordering of the fake only; a real server makes no promise about ties.
type fakeQdrant struct {
	mu          sync.Mutex
	seq         int
	apiKey      string
	collections map[string]*fakeCollection
	lastSearch  map[string]any
}

func newFakeQdrant(apiKey string) *fakeQdrant {
	return &fakeQdrant{apiKey: apiKey, collections: make(map[string]*fakeCollection)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"status": map[string]any{"error": fmt.Sprintf("Not found: Collection `%s` doesn't exist!", name)},
	})
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.apiKey != "" && r.Header.Get("api-key") != f.apiKey {
		writeJSON(w, http.StatusForbidden, map[string]any{"status": map[string]any{"error": "bad key"}})
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/collections/"), "/")
	name := parts[0]
	c := f.collections[name]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		if c == nil {
			notFound(w, name)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{
			"status":       "green",
			"points_count": len(c.points),
			"config": map[string]any{"params": map[string]any{
				"vectors": map[string]any{"size": c.size, "distance": c.distance},
			}},
		}})

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = &fakeCollection{
			size:     body.Vectors.Size,
			distance: body.Vectors.Distance,
			points:   make(map[string]fakePoint),
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": true})

	case len(parts) == 1 && r.Method == http.MethodDelete:
		_, ok := f.collections[name]
		delete(f.collections, name)
		writeJSON(w, http.StatusOK, map[string]any{"result": ok})

	case len(parts) == 2 && parts[1] == "points" && r.Method == http.MethodPut:
		if c == nil {
			notFound(w, name)
			return
		}
		var body struct {
			Points []fakePoint `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			if len(p.Vector) != c.size {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": map[string]any{"error": "wrong vector size"}})
				return
			}
		}
		for _, p := range body.Points {
			f.seq++
			p.seq = f.seq
			c.points[p.ID] = p
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"status": "completed"}})

	case len(parts) == 3 && parts[2] == "search" && r.Method == http.MethodPost:
		if c == nil {
			notFound(w, name)
			return
		}
		var body struct {
			Vector         []float32 `json:"vector"`
			Limit          int       `json:"limit"`
			ScoreThreshold *float64  `json:"score_threshold"`
			Filter         *struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value any `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		raw := map[string]any{}
		dec := json.NewDecoder(r.Body)
		dec.Decode(&raw)
		f.lastSearch = raw
		encoded, _ := json.Marshal(raw)
		json.Unmarshal(encoded, &body)

		type hit struct {
			p     fakePoint
			score float64
		}
		var hits []hit
		for _, p := range c.points {
			if body.Filter != nil {
				ok := true
				for _, cond := range body.Filter.Must {
					meta, _ := p.Payload["metadata"].(map[string]any)
					key := strings.TrimPrefix(cond.Key, "metadata.")
					if fmt.Sprint(meta[key]) != fmt.Sprint(cond.Match.Value) {
						ok = false
					}
				}
				if !ok {
					continue
				}
			}
			s := cosine(body.Vector, p.Vector)
			if body.ScoreThreshold != nil && s < *body.ScoreThreshold {
				continue
			}
			hits = append(hits, hit{p: p, score: s})
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].score != hits[j].score {
				return hits[i].score > hits[j].score
			}
			return hits[i].p.seq > hits[j].p.seq
		})
		if len(hits) > body.Limit {
			hits = hits[:body.Limit]
		}
		result := make([]map[string]any, len(hits))
		for i, h := range hits {
			result[i] = map[string]any{"id": h.p.ID, "version": 1, "score": h.score, "payload": h.p.Payload}
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result})

	default:
		http.NotFound(w, r)
	}
}

func TestQdrantIndex(t *testing.T) {
	server := httptest.NewServer(newFakeQdrant("secret"))
	defer server.Close()

	idx, err := store.NewQdrant(store.QdrantConfig{URL: server.URL, APIKey: "secret"})
	require.NoError(t, err)
	defer idx.Close()

	runIndexSuite(t, idx, suiteOptions{})
}

func TestQdrantServerErrorIsConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": map[string]any{"error": "overloaded"}})
	}))
	defer server.Close()

	idx, err := store.NewQdrant(store.QdrantConfig{URL: server.URL})
	require.NoError(t, err)

	_, err = idx.Stats(context.Background(), "docs")
	assert.ErrorIs(t, err, models.ErrConnection)
	assert.NotErrorIs(t, err, models.ErrProvider)

	err = idx.EnsureCollection(context.Background(), "docs", 3, models.Cosine)
	assert.ErrorIs(t, err, models.ErrConnection)
}

func TestQdrantRecreatedCollectionIsPickedUp(t *testing.T) {
	server := httptest.NewServer(newFakeQdrant(""))
	defer server.Close()

	ctx := context.Background()
	first, err := store.NewQdrant(store.QdrantConfig{URL: server.URL})
	require.NoError(t, err)
	second, err := store.NewQdrant(store.QdrantConfig{URL: server.URL})
	require.NoError(t, err)

	require.NoError(t, first.EnsureCollection(ctx, "shared", 2, models.Cosine))
	require.NoError(t, first.Upsert(ctx, "shared", []models.IndexPoint{point("two", "a.md", 1, 0)}))

	require.NoError(t, store.Reset(ctx, second, "shared", 3, models.Cosine))
	require.NoError(t, second.Upsert(ctx, "shared", []models.IndexPoint{point("three", "b.md", 1, 0, 0)}))

	require.NoError(t, first.Upsert(ctx, "shared", []models.IndexPoint{point("again", "c.md", 0, 1, 0)}))
	results, err := first.Search(ctx, "shared", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "three", results[0].Content)

	_, err = first.Search(ctx, "shared", []float32{1, 0}, 5, nil)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	require.NoError(t, second.Drop(ctx, "shared"))
	_, err = first.Search(ctx, "shared", []float32{1, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestQdrantSendsFilterAndThreshold(t *testing.T) {
	fake := newFakeQdrant("")
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	idx, err := store.NewQdrant(store.QdrantConfig{URL: server.URL, ScoreThreshold: 0.25})
	require.NoError(t, err)
	require.NoError(t, idx.EnsureCollection(ctx, "docs", 2, models.Cosine))

	_, err = idx.Search(ctx, "docs", []float32{1, 0}, 4, models.Filter{"category": "guide"})
	require.NoError(t, err)

	assert.Equal(t, 0.25, fake.lastSearch["score_threshold"])
	assert.Equal(t, float64(4), fake.lastSearch["limit"])
	assert.Equal(t, map[string]any{
		"must": []any{
			map[string]any{"key": "metadata.category", "match": map[string]any{"value": "guide"}},
		},
	}, fake.lastSearch["filter"])
}

func TestQdrantRejectsWrongAPIKey(t *testing.T) {
	server := httptest.NewServer(newFakeQdrant("secret"))
	defer server.Close()

	idx, err := store.NewQdrant(store.QdrantConfig{URL: server.URL, APIKey: "wrong"})
	require.NoError(t, err)

	err = idx.EnsureCollection(context.Background(), "docs", 3, models.Cosine)
	assert.ErrorIs(t, err, models.ErrProvider)
}

func TestQdrantUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	idx, err := store.NewQdrant(store.QdrantConfig{URL: url})
	require.NoError(t, err)

	_, err = idx.Stats(context.Background(), "docs")
	assert.ErrorIs(t, err, models.ErrConnection)
}

func TestQdrantInvalidURL(t *testing.T) {
	_, err := store.NewQdrant(store.QdrantConfig{URL: "::not a url"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
