package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DimitriTimoz/open-finder/internal/classify"
	"github.com/DimitriTimoz/open-finder/internal/extract"
	"github.com/DimitriTimoz/open-finder/internal/fetch"
	"github.com/DimitriTimoz/open-finder/internal/frontier"
	"github.com/DimitriTimoz/open-finder/internal/journal"
	"github.com/DimitriTimoz/open-finder/internal/weburl"
)

type noopExtractor struct{}

func (noopExtractor) ExtractText(kind classify.Kind, body []byte) (string, error) { return "", nil }

func TestSchedulerSeedAndOneHop(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/b">next</a>`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("leaf page"))
	})

	f, err := fetch.New(fetch.Config{Extractor: noopExtractor{}})
	if err != nil {
		t.Fatalf("fetch.New: %v", err)
	}

	dir := t.TempDir()
	j, err := journal.New(dir, false)
	if err != nil {
		t.Fatalf("journal.New: %v", err)
	}
	defer j.Close()

	fr := frontier.New(false)
	sched := New(Config{
		Frontier:           fr,
		Fetcher:            f,
		Journal:            j,
		ConcurrentRequests: 4,
	})

	fr.Add(weburl.MustParse(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fr.Len() != 0 {
		t.Errorf("expected empty frontier after completion, got %d pending", fr.Len())
	}
}

func TestSchedulerDedupsDiscoveredLinks(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/x">a</a><a href="/x">b</a>`))
	})
	hits := 0
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("x"))
	})

	f, err := fetch.New(fetch.Config{Extractor: noopExtractor{}})
	if err != nil {
		t.Fatalf("fetch.New: %v", err)
	}
	dir := t.TempDir()
	j, err := journal.New(dir, false)
	if err != nil {
		t.Fatalf("journal.New: %v", err)
	}
	defer j.Close()

	fr := frontier.New(false)
	sched := New(Config{Frontier: fr, Fetcher: f, Journal: j, ConcurrentRequests: 4})
	fr.Add(weburl.MustParse(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if hits != 1 {
		t.Errorf("expected /x fetched exactly once, got %d", hits)
	}
}

func TestSchedulerSkipsMediaAndMailto(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/img.png">i</a>"mailto:foo@bar"`))
	})
	imgHit := false
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		imgHit = true
		w.Write([]byte("img"))
	})

	f, err := fetch.New(fetch.Config{Extractor: noopExtractor{}})
	if err != nil {
		t.Fatalf("fetch.New: %v", err)
	}
	dir := t.TempDir()
	j, err := journal.New(dir, false)
	if err != nil {
		t.Fatalf("journal.New: %v", err)
	}
	defer j.Close()

	fr := frontier.New(false)
	sched := New(Config{Frontier: fr, Fetcher: f, Journal: j, ConcurrentRequests: 4})
	fr.Add(weburl.MustParse(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if imgHit {
		t.Error("expected media url to be skipped, never fetched")
	}
}
