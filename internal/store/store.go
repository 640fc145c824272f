// Package store defines the optional queryable crawl store: a persisted,
// filterable record of every page fetched, independent of the two
// mandatory CSV journals. It exists purely for operator inspection
// (ad-hoc queries, resumption audits) and is never read back into the
// frontier.
package store

import (
	"context"
	"time"
)

// FetchRecord is the row shape persisted by a Backend: one fetched page.
type FetchRecord struct {
	URL            string
	Status         int
	Kind           string
	Hash           string
	ContentPreview string
	FetchedAt      time.Time
}

// Filter narrows a Query call.
type Filter struct {
	URL    string
	Kind   string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend persists and queries FetchRecords. Implementations back onto
// CSV, NDJSON, SQLite, or Postgres; the crawler depends only on this
// interface.
type Backend interface {
	Save(ctx context.Context, rec *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}
