// Package sitemap discovers extra seed URLs by fetching and parsing a
// host's sitemap.xml, recursing into sitemap indexes.
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	sitemapparse "github.com/oxffaa/gopher-parse-sitemap"
)

// Fetcher fetches and parses sitemaps over a caller-supplied HTTP client,
// so it shares the crawler's cookie jar and fingerprinted transport
// rather than opening its own connections.
type Fetcher struct {
	client *http.Client
	log    *slog.Logger
}

// New builds a Fetcher around client. Passing the crawler's own
// *http.Client lets a CAS-gated sitemap benefit from an existing session.
func New(client *http.Client, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{client: client, log: log}
}

// FetchSitemap fetches sitemapURL and returns every page URL it names,
// recursing into nested sitemaps when the document is a sitemap index.
// Nested fetches that fail are logged and skipped rather than aborting
// the whole discovery pass.
func (f *Fetcher) FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	return f.fetchSitemap(ctx, sitemapURL, map[string]struct{}{})
}

func (f *Fetcher) fetchSitemap(ctx context.Context, sitemapURL string, seen map[string]struct{}) ([]string, error) {
	if _, ok := seen[sitemapURL]; ok {
		return nil, nil
	}
	seen[sitemapURL] = struct{}{}

	f.log.Debug("sitemap: fetching", "url", sitemapURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("sitemap: building request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sitemap: fetching %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sitemap: %s returned status %d", sitemapURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sitemap: reading %s: %w", sitemapURL, err)
	}

	var urls []string
	parseErr := sitemapparse.Parse(bytes.NewReader(body), func(e sitemapparse.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})
	if parseErr == nil && len(urls) > 0 {
		return urls, nil
	}

	var nested []string
	if indexErr := sitemapparse.ParseIndex(bytes.NewReader(body), func(e sitemapparse.IndexEntry) error {
		nested = append(nested, e.GetLocation())
		return nil
	}); indexErr != nil || len(nested) == 0 {
		return nil, fmt.Errorf("sitemap: %s is neither a valid sitemap nor a sitemap index", sitemapURL)
	}

	for _, nestedURL := range nested {
		nestedURLs, err := f.fetchSitemap(ctx, nestedURL, seen)
		if err != nil {
			f.log.Warn("sitemap: nested fetch failed", "url", nestedURL, "err", err)
			continue
		}
		urls = append(urls, nestedURLs...)
	}
	return urls, nil
}
