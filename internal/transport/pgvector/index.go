// Package pgvector serves passage similarity search from a Postgres table with a pgvector column.
package pgvector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/passage"
)

// querier is the subset of *pgxpool.Pool used by the index (ISP).
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Config holds pgvector connection settings.
type Config struct {
	DSN         string
	MaxConns    int32
	Table       string
	VectorField string
	Timeout     time.Duration
}

// Index is a read-only passage index over a Postgres table.
// Expected columns: id, video_id, title, timestamp_start, text and the vector column.
type Index struct {
	db      querier
	close   func()
	query   string
	timeout time.Duration
	logger  *zap.Logger
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Index, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("pgvector index configured",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("table", cfg.Table),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)

	x := newIndex(pool, cfg.Table, cfg.VectorField, cfg.Timeout, logger)
	x.close = pool.Close
	return x, nil
}

func newIndex(db querier, table, vectorField string, timeout time.Duration, logger *zap.Logger) *Index {
	if vectorField == "" {
		vectorField = "embedding"
	}
	return &Index{
		db:      db,
		close:   func() {},
		query:   buildQuery(table, vectorField),
		timeout: timeout,
		logger:  logger,
	}
}

// buildQuery renders the KNN statement. Identifiers are quoted; the vector and limit are bound.
// <=> is cosine distance, so 1 - distance is the similarity.
func buildQuery(table, vectorField string) string {
	vec := pgx.Identifier{vectorField}.Sanitize()
	return fmt.Sprintf(
		`SELECT id::text, video_id, title, timestamp_start, text, 1 - (%[1]s <=> $1::vector) AS score `+
			`FROM %[2]s ORDER BY %[1]s <=> $1::vector LIMIT $2`,
		vec, pgx.Identifier(strings.Split(table, ".")).Sanitize(),
	)
}

// Query returns the topK nearest passages with their metadata.
func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]passage.RawMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive: %w", domain.ErrInvalidInput)
	}
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	rows, err := x.db.Query(ctx, x.query, vectorLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %v: %w", err, domain.ErrIndexUnavailable)
	}
	defer rows.Close()

	var matches []passage.RawMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("pgvector scan: %v: %w", err, domain.ErrIndexUnavailable)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector rows: %v: %w", err, domain.ErrIndexUnavailable)
	}
	return matches, nil
}

// HealthCheck pings the database.
func (x *Index) HealthCheck(ctx context.Context) error {
	if err := x.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (x *Index) Close() {
	x.close()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanMatch reads one row. NULL columns are left out of the payload.
func scanMatch(row scanner) (passage.RawMatch, error) {
	var (
		id, videoID, title, text *string
		start                    *float64
		score                    float64
	)
	if err := row.Scan(&id, &videoID, &title, &start, &text, &score); err != nil {
		return passage.RawMatch{}, err
	}

	payload := make(map[string]any, 4)
	if videoID != nil {
		payload[passage.KeyVideoID] = *videoID
	}
	if title != nil {
		payload[passage.KeyTitle] = *title
	}
	if start != nil {
		payload[passage.KeyTimestampStart] = *start
	}
	if text != nil {
		payload[passage.KeyText] = *text
	}

	m := passage.RawMatch{Score: score, Payload: payload}
	if id != nil {
		m.ID = *id
	}
	return m, nil
}

// vectorLiteral formats a vector in pgvector's text input form, e.g. [0.1,0.2].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
