package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/DimitriTimoz/open-finder/internal/store"
)

func TestSQLiteBackend(t *testing.T) {
	dsn := "file::memory:?cache=shared"
	b, err := New(dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	rec := &store.FetchRecord{
		URL:            "http://example.com",
		Status:         200,
		Kind:           "html",
		Hash:           "sq1",
		ContentPreview: "hello world",
		FetchedAt:      now,
	}

	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := b.Query(ctx, store.Filter{URL: "http://example.com"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.Hash != rec.Hash || got.URL != rec.URL || got.Status != rec.Status {
		t.Errorf("got %+v, want %+v", got, rec)
	}
	if got.FetchedAt.Unix() != rec.FetchedAt.Unix() {
		t.Errorf("expected FetchedAt %v, got %v", rec.FetchedAt, got.FetchedAt)
	}

	past := now.Add(-1 * time.Hour)
	sinceResults, err := b.Query(ctx, store.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Query since: %v", err)
	}
	if len(sinceResults) != 1 {
		t.Fatalf("expected 1 result, got %d", len(sinceResults))
	}

	kindResults, err := b.Query(ctx, store.Filter{Kind: "pdf"})
	if err != nil {
		t.Fatalf("Query kind: %v", err)
	}
	if len(kindResults) != 0 {
		t.Fatalf("expected 0 results for mismatched kind, got %d", len(kindResults))
	}
}
