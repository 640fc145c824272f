// Package postgres implements the queryable store's Postgres backend.
package postgres

import (
	"context"
	"fmt"

	"github.com/DimitriTimoz/open-finder/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ store.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_records (
	url TEXT NOT NULL,
	status INTEGER NOT NULL,
	kind TEXT NOT NULL,
	hash TEXT PRIMARY KEY,
	content_preview TEXT,
	fetched_at TIMESTAMPTZ NOT NULL
);
`

// New creates a new Postgres-backed store.Backend.
func New(ctx context.Context, dsn string) (store.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *store.FetchRecord) error {
	query := `
	INSERT INTO fetch_records (url, status, kind, hash, content_preview, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (hash) DO UPDATE SET
		url = EXCLUDED.url, status = EXCLUDED.status, kind = EXCLUDED.kind,
		content_preview = EXCLUDED.content_preview, fetched_at = EXCLUDED.fetched_at
	`
	_, err := b.pool.Exec(ctx, query, rec.URL, rec.Status, rec.Kind, rec.Hash, rec.ContentPreview, rec.FetchedAt)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter store.Filter) ([]*store.FetchRecord, error) {
	query := `SELECT url, status, kind, hash, content_preview, fetched_at FROM fetch_records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.URL != "" {
		query += fmt.Sprintf(` AND url = $%d`, paramCount)
		args = append(args, filter.URL)
		paramCount++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, paramCount)
		args = append(args, filter.Kind)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND fetched_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY fetched_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer rows.Close()

	var results []*store.FetchRecord
	for rows.Next() {
		var r store.FetchRecord
		if err := rows.Scan(&r.URL, &r.Status, &r.Kind, &r.Hash, &r.ContentPreview, &r.FetchedAt); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
