package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DimitriTimoz/open-finder/internal/store"
)

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("OPENFINDER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("skipping Postgres backend test: OPENFINDER_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	now := time.Now().UTC()

	rec := &store.FetchRecord{
		URL:            "http://example-pg.com",
		Status:         200,
		Kind:           "html",
		Hash:           "pg1",
		ContentPreview: `{"hello":"pg"}`,
		FetchedAt:      now,
	}

	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := b.Query(ctx, store.Filter{URL: "http://example-pg.com"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) < 1 {
		t.Fatalf("expected at least 1 result, got %d", len(results))
	}

	got := results[0]
	if got.Hash != rec.Hash || got.URL != rec.URL || got.Status != rec.Status {
		t.Errorf("got %+v, want %+v", got, rec)
	}
	if got.FetchedAt.Unix() != rec.FetchedAt.Unix() {
		t.Errorf("expected FetchedAt %v, got %v", rec.FetchedAt, got.FetchedAt)
	}

	past := now.Add(-1 * time.Hour)
	sinceResults, err := b.Query(ctx, store.Filter{URL: "http://example-pg.com", Since: &past})
	if err != nil {
		t.Fatalf("Query since: %v", err)
	}
	if len(sinceResults) < 1 {
		t.Fatalf("expected at least 1 result, got %d", len(sinceResults))
	}
}
