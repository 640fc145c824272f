// Package sqlite implements the queryable store's SQLite backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DimitriTimoz/open-finder/internal/store"
	_ "modernc.org/sqlite"
)

var _ store.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_records (
	url TEXT NOT NULL,
	status INTEGER NOT NULL,
	kind TEXT NOT NULL,
	hash TEXT PRIMARY KEY,
	content_preview TEXT,
	fetched_at DATETIME NOT NULL
);
`

// New creates a new SQLite-backed store.Backend.
func New(dsn string) (store.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *store.FetchRecord) error {
	query := `
	INSERT OR REPLACE INTO fetch_records (url, status, kind, hash, content_preview, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := b.db.ExecContext(ctx, query, rec.URL, rec.Status, rec.Kind, rec.Hash, rec.ContentPreview, rec.FetchedAt)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter store.Filter) ([]*store.FetchRecord, error) {
	query := `SELECT url, status, kind, hash, content_preview, fetched_at FROM fetch_records WHERE 1=1`
	args := []any{}

	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Since != nil {
		query += ` AND fetched_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY fetched_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	var results []*store.FetchRecord
	for rows.Next() {
		var r store.FetchRecord
		if err := rows.Scan(&r.URL, &r.Status, &r.Kind, &r.Hash, &r.ContentPreview, &r.FetchedAt); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		r.FetchedAt = r.FetchedAt.UTC()
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
