// Package fetch implements the one-shot page fetch: GET, transparent CAS
// interception, content classification, link extraction, text extraction,
// and delivery to the search sink and the active package directory.
package fetch

import (
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"github.com/DimitriTimoz/open-finder/internal/bypass"
	"github.com/DimitriTimoz/open-finder/internal/cas"
	"github.com/DimitriTimoz/open-finder/internal/classify"
	"github.com/DimitriTimoz/open-finder/internal/extract"
	"github.com/DimitriTimoz/open-finder/internal/fingerprint"
	"github.com/DimitriTimoz/open-finder/internal/metrics"
	"github.com/DimitriTimoz/open-finder/internal/store"
	"github.com/DimitriTimoz/open-finder/internal/weburl"
	"github.com/DimitriTimoz/open-finder/pkg/httpclient"
	"github.com/DimitriTimoz/open-finder/pkg/proxy"
	"github.com/DimitriTimoz/open-finder/pkg/useragent"
)

const maxArtifactNameBytes = 255

// Document is one unit of work shipped to the external search sink.
type Document struct {
	URL     string
	Content string
	Kind    string
	Hash    string
}

// SearchSink is the opaque full-text index the crawler forwards extracted
// text to. A publish failure is logged by the caller and never aborts the
// fetch: the on-disk artifact remains the durable copy.
type SearchSink interface {
	Publish(ctx context.Context, doc Document) error
}

// PackageDir reports the artifact directory currently open for writes. It
// may change between two calls as the packager rotates; callers must read
// it once per write and tolerate the directory disappearing underneath a
// straggling write (the write is then simply lost, per design).
type PackageDir interface {
	CurrentDir() string
}

// maxContentPreview bounds the text stored in a FetchRecord's preview
// column; the full text lives in the packaged artifact, not the store.
const maxContentPreview = 512

// Page is the transient result of one fetch: the effective URL, its HTTP
// status, and the set of links discovered in its body.
type Page struct {
	URL    weburl.URL
	Status int
	Links  map[string]weburl.URL
}

// Config configures a Fetcher.
type Config struct {
	CASHost     string
	Credentials cas.CredentialSource
	Extractor   extract.Extractor
	Sink        SearchSink
	PackageDir  PackageDir
	Fingerprint fingerprint.Profile
	Timeout     time.Duration
	// Proxies, when set, routes every request through one upstream proxy
	// drawn from the pool's rotation instead of a direct connection.
	Proxies *proxy.Pool
	// UserAgents rotates the request User-Agent header per fetch. Defaults
	// to useragent.DefaultPool when nil.
	UserAgents *useragent.Pool
	// Store, when set, receives a FetchRecord for every completed fetch in
	// addition to the mandatory CSV journal. Optional: nil disables it.
	Store store.Backend
	// Logger receives fetch-level diagnostics (swallowed sink errors, etc).
	// Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Fetcher performs single-URL fetches over one shared, cookie-jar-backed
// HTTP session. The session is safe for concurrent use by many goroutines;
// that sharing is what lets one CAS login benefit every other in-flight
// fetch.
type Fetcher struct {
	client     *http.Client
	casHost    string
	creds      cas.CredentialSource
	extractor  extract.Extractor
	sink       SearchSink
	packageD   PackageDir
	detectors  []bypass.Detector
	userAgents *useragent.Pool
	store      store.Backend
	log        *slog.Logger
}

// New builds a Fetcher around a fresh shared HTTP session: cookie jar
// always enabled, a 2-second request timeout, and a uTLS-fingerprinted
// transport wrapped to transparently decode gzip/brotli bodies.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.Default()
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(nil)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	proxyFunc := http.ProxyFromEnvironment
	if cfg.Proxies != nil {
		pool := cfg.Proxies
		proxyFunc = func(*http.Request) (*url.URL, error) { return pool.Next(), nil }
	}

	base, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("fetch: building transport: %w", err)
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 10,
		UseCookieJar: true,
		Transport:    contentEncodingTransport{inner: base},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: building http client: %w", err)
	}

	return &Fetcher{
		client:     hc.Client,
		casHost:    cfg.CASHost,
		creds:      cfg.Credentials,
		extractor:  cfg.Extractor,
		sink:       cfg.Sink,
		packageD:   cfg.PackageDir,
		detectors:  bypass.DefaultDetectors(),
		userAgents: cfg.UserAgents,
		store:      cfg.Store,
		log:        log,
	}, nil
}

// Client exposes the shared *http.Client so other components can reuse the
// same transport and cookie jar; main hands it to the sitemap fetcher.
func (f *Fetcher) Client() *http.Client { return f.client }

// Fetch performs the full one-shot page fetch described by the system's
// page-fetcher component: GET, CAS interception on redirect, classify,
// extract links, extract text, publish, save.
func (f *Fetcher) Fetch(ctx context.Context, u weburl.URL) (Page, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		metrics.RecordFetch(0, 0, time.Since(start), true)
		return Page{}, fmt.Errorf("fetch: building request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgents.GetRandom())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.RecordFetch(0, 0, time.Since(start), true)
		return Page{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	finalURL, err := weburl.Parse(resp.Request.URL.String())
	if err != nil {
		metrics.RecordFetch(resp.StatusCode, 0, time.Since(start), false)
		return Page{}, fmt.Errorf("fetch: invalid final url: %w", err)
	}

	var body []byte
	status := resp.StatusCode

	if finalURL.IsCAS(f.casHost) {
		authBody, err := cas.Handshake(ctx, f.client, finalURL, f.creds)
		if err != nil {
			metrics.RecordFetch(status, 0, time.Since(start), false)
			metrics.CASLoginsTotal.WithLabelValues("failure").Inc()
			return Page{}, fmt.Errorf("fetch: cas handshake: %w", err)
		}
		metrics.CASLoginsTotal.WithLabelValues("success").Inc()
		body = authBody
	} else {
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			metrics.RecordFetch(status, 0, time.Since(start), false)
			return Page{}, fmt.Errorf("fetch: reading body: %w", err)
		}
	}

	metrics.RecordFetch(status, len(body), time.Since(start), false)
	if detected, source := bypass.Detect(status, resp.Header, body, f.detectors); detected {
		metrics.FetchesTotal.WithLabelValues("challenged:" + source).Inc()
	}

	kind := classify.Classify(finalURL.FileName(), body)
	links := weburl.ExtractLinks(body, u)
	delete(links, u.String())

	page := Page{URL: u, Status: status, Links: links}

	text, err := f.extractor.ExtractText(kind, body)

	if f.store != nil {
		f.saveRecord(ctx, u, status, kind.String(), text)
	}

	if err != nil || text == "" {
		return page, nil
	}

	if f.sink != nil {
		doc := Document{URL: u.String(), Content: text, Kind: kind.String(), Hash: urlHash(u)}
		if perr := f.sink.Publish(ctx, doc); perr != nil {
			// Sink failures are non-fatal: the on-disk artifact is durable.
			f.log.Warn("fetch: sink publish failed", "url", u.String(), "err", perr)
		}
	}

	if f.packageD != nil {
		f.saveArtifact(u, text)
	}

	return page, nil
}

// saveRecord persists one FetchRecord to the optional queryable store. A
// store failure is logged-equivalent (silently dropped): the mandatory CSV
// journal, not this store, is the durable record of what was fetched.
func (f *Fetcher) saveRecord(ctx context.Context, u weburl.URL, status int, kind, text string) {
	preview := text
	if len(preview) > maxContentPreview {
		preview = preview[:maxContentPreview]
	}
	rec := &store.FetchRecord{
		URL:            u.String(),
		Status:         status,
		Kind:           kind,
		Hash:           urlHash(u),
		ContentPreview: preview,
		FetchedAt:      time.Now(),
	}
	_ = f.store.Save(ctx, rec)
}

// urlHash is the search sink's stable document key: the hex MD5 of the
// URL string, distinct from weburl.URL.Hash's FNV-64a frontier dedup hash.
func urlHash(u weburl.URL) string {
	sum := md5.Sum([]byte(u.String()))
	return hex.EncodeToString(sum[:])
}

// saveArtifact writes text to a file under the currently active package
// directory via write-to-temp-then-rename, so a write racing a packager
// rotation lands entirely in one directory or is cleanly lost, never torn.
func (f *Fetcher) saveArtifact(u weburl.URL, text string) {
	dir := f.packageD.CurrentDir()
	if dir == "" {
		return
	}
	name := strings.ReplaceAll(u.String(), "/", "_")
	if len(name) > maxArtifactNameBytes-len(".txt") {
		name = name[:maxArtifactNameBytes-len(".txt")]
	}
	finalPath := filepath.Join(dir, name+".txt")
	tmpPath := filepath.Join(dir, "."+uuid.NewString()+".tmp")

	if err := os.WriteFile(tmpPath, []byte(text), 0o644); err != nil {
		return
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
	}
}

// contentEncodingTransport requests gzip/brotli explicitly (disabling
// net/http's own gzip auto-handling, which only engages when the caller
// leaves Accept-Encoding unset) and decodes whichever one the server used.
type contentEncodingTransport struct {
	inner http.RoundTripper
}

func (t contentEncodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept-Encoding", "gzip, br")
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		resp.Body = io.NopCloser(brotli.NewReader(resp.Body))
	case "gzip":
		gz, gerr := gzip.NewReader(resp.Body)
		if gerr == nil {
			resp.Body = gz
		}
	}
	return resp, nil
}
