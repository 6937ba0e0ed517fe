package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/logger"
)

const registryTable = "askdocs_collections"

type PGVectorConfig struct {
	ConnString     string
	ScoreThreshold float64
}

// PGVector keeps each collection in its own table and records dimension and
// metric in a registry table.
type PGVector struct {
	config PGVectorConfig
	pool   *pgxpool.Pool
	cache  *registry
}

// pgMetric holds the per-metric SQL fragments. distance orders ascending,
// score is higher-is-closer.
type pgMetric struct {
	opClass  string
	distance string
	score    string
}

var pgMetrics = map[models.Distance]pgMetric{
	models.Cosine:    {opClass: "vector_cosine_ops", distance: "embedding <=> $1", score: "1 - (embedding <=> $1)"},
	models.Dot:       {opClass: "vector_ip_ops", distance: "embedding <#> $1", score: "(embedding <#> $1) * -1"},
	models.Euclidean: {opClass: "vector_l2_ops", distance: "embedding <-> $1", score: "-(embedding <-> $1)"},
}

func NewPGVector(ctx context.Context, config PGVectorConfig) (*PGVector, error) {
	if config.ConnString == "" {
		return nil, models.ConfigError("pgvector requires a database url")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, models.ConfigError("invalid database url: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &models.ConnectionError{Target: "postgres", Err: err}
	}

	vs := &PGVector{
		config: config,
		pool:   pool,
		cache:  newRegistry(),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVector) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return vs.wrap("create extension", err)
	}

	_, err := vs.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+registryTable+` (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			metric TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return vs.wrap("create registry", err)
	}
	return nil
}

func tableName(collection string) string {
	return pgx.Identifier{"askdocs_" + collection}.Sanitize()
}

func indexName(collection string) string {
	return pgx.Identifier{"askdocs_" + collection + "_embedding_idx"}.Sanitize()
}

func (vs *PGVector) EnsureCollection(ctx context.Context, name string, dimension int, metric models.Distance) error {
	if err := checkCollectionArgs(name, dimension, metric); err != nil {
		return err
	}

	info, err := vs.describe(ctx, name)
	if err == nil {
		vs.cache.put(name, info)
		if info.dimension != dimension {
			return &models.DimensionError{Context: "collection " + name, Expected: info.dimension, Got: dimension}
		}
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return vs.wrap("begin", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO `+registryTable+` (name, dimension, metric) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		name, dimension, string(metric))
	if err != nil {
		return vs.wrap("register collection", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		)`, tableName(name), dimension)
	if _, err := tx.Exec(ctx, createTable); err != nil {
		return vs.wrap("create table", err)
	}

	createIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`,
		indexName(name), tableName(name), pgMetrics[metric].opClass)
	if _, err := tx.Exec(ctx, createIndex); err != nil {
		return vs.wrap("create index", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return vs.wrap("commit", err)
	}
	logger.Debug("created pgvector collection %s (dimension %d, %s)", name, dimension, metric)

	// a concurrent creator may have registered different parameters first
	vs.cache.forget(name)
	info, err = vs.lookup(ctx, name)
	if err != nil {
		return err
	}
	if info.dimension != dimension {
		return &models.DimensionError{Context: "collection " + name, Expected: info.dimension, Got: dimension}
	}
	return nil
}

// Upsert writes the batch in one transaction.
func (vs *PGVector) Upsert(ctx context.Context, collection string, points []models.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}
	return vs.cache.withCollection(ctx, collection, vs.describe, func(info collectionInfo) error {
		return vs.upsert(ctx, collection, info, points)
	})
}

func (vs *PGVector) upsert(ctx context.Context, collection string, info collectionInfo, points []models.IndexPoint) error {
	if err := checkPoints(collection, info.dimension, points); err != nil {
		return err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return vs.wrap("begin", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			created_at = clock_timestamp()`,
		tableName(collection))

	for _, p := range points {
		meta := sanitizeMetadata(p.Metadata)
		if _, err := tx.Exec(ctx, stmt, p.ID, sanitizeUTF8(p.Content), meta, pgvector.NewVector(p.Vector)); err != nil {
			return vs.wrap("upsert", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return vs.wrap("commit", err)
	}
	return nil
}

func (vs *PGVector) Search(ctx context.Context, collection string, vector []float32, k int, filter models.Filter) ([]models.ScoredResult, error) {
	if err := checkLimit(k); err != nil {
		return nil, err
	}
	var results []models.ScoredResult
	err := vs.cache.withCollection(ctx, collection, vs.describe, func(info collectionInfo) error {
		var err error
		results, err = vs.search(ctx, collection, info, vector, k, filter)
		return err
	})
	return results, err
}

func (vs *PGVector) search(ctx context.Context, collection string, info collectionInfo, vector []float32, k int, filter models.Filter) ([]models.ScoredResult, error) {
	if err := checkVector("search in "+collection, info.dimension, vector); err != nil {
		return nil, err
	}

	m := pgMetrics[info.metric]
	args := []any{pgvector.NewVector(vector), k}
	var where []string
	if len(filter) > 0 {
		args = append(args, map[string]any(filter))
		where = append(where, fmt.Sprintf("metadata @> $%d", len(args)))
	}
	if vs.config.ScoreThreshold != 0 {
		args = append(args, vs.config.ScoreThreshold)
		where = append(where, fmt.Sprintf("%s >= $%d", m.score, len(args)))
	}

	query := fmt.Sprintf(`SELECT id, content, metadata, %s AS score FROM %s`, m.score, tableName(collection))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s, created_at DESC LIMIT $2", m.distance)

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, vs.wrap("search", err)
	}
	defer rows.Close()

	var results []models.ScoredResult
	for rows.Next() {
		var r models.ScoredResult
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.Score); err != nil {
			return nil, vs.wrap("scan", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, vs.wrap("search", err)
	}
	return results, nil
}

func (vs *PGVector) Stats(ctx context.Context, name string) (models.CollectionStats, error) {
	var count int64
	err := vs.cache.withCollection(ctx, name, vs.describe, func(collectionInfo) error {
		if err := vs.pool.QueryRow(ctx, "SELECT count(*) FROM "+tableName(name)).Scan(&count); err != nil {
			return vs.wrap("stats", err)
		}
		return nil
	})
	if err != nil {
		return models.CollectionStats{}, err
	}
	return models.CollectionStats{Name: name, PointCount: count, VectorCount: count, Status: "green"}, nil
}

func (vs *PGVector) Drop(ctx context.Context, name string) error {
	vs.cache.forget(name)

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return vs.wrap("begin", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM `+registryTable+` WHERE name = $1`, name)
	if err != nil {
		return vs.wrap("drop", err)
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Kind: "collection", Name: name}
	}
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+tableName(name)); err != nil {
		return vs.wrap("drop", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return vs.wrap("commit", err)
	}
	return nil
}

func (vs *PGVector) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}

func (vs *PGVector) lookup(ctx context.Context, name string) (collectionInfo, error) {
	info, _, err := vs.cache.resolve(ctx, name, vs.describe)
	return info, err
}

// describe reads a collection's parameters from the registry table.
func (vs *PGVector) describe(ctx context.Context, name string) (collectionInfo, error) {
	var (
		info   collectionInfo
		metric string
	)
	err := vs.pool.QueryRow(ctx,
		`SELECT dimension, metric FROM `+registryTable+` WHERE name = $1`, name,
	).Scan(&info.dimension, &metric)
	if errors.Is(err, pgx.ErrNoRows) {
		return collectionInfo{}, &models.NotFoundError{Kind: "collection", Name: name}
	}
	if err != nil {
		return collectionInfo{}, vs.wrap("lookup", err)
	}
	info.metric = models.Distance(metric)
	return info, nil
}

// wrap maps driver errors onto the error taxonomy.
func (vs *PGVector) wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "42P01" {
			return &models.NotFoundError{Kind: "table", Name: pgErr.TableName}
		}
		return &models.ProviderError{Provider: "pgvector", Op: op, Err: err}
	}

	var netErr net.Error
	var connectErr *pgconn.ConnectError
	if errors.As(err, &netErr) || errors.As(err, &connectErr) {
		return &models.ConnectionError{Target: "postgres", Err: err}
	}
	return &models.ProviderError{Provider: "pgvector", Op: op, Err: err}
}

func sanitizeMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if s, ok := v.(string); ok {
			v = sanitizeUTF8(s)
		}
		out[k] = v
	}
	return out
}

// sanitizeUTF8 drops invalid bytes, which postgres rejects in text columns.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
