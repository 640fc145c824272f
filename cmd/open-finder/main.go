// Command open-finder runs a single-origin focused web crawl: it reads
// seed URLs from standard input (or resumes a prior run's journal),
// fetches and classifies every reachable page within the allowed domain
// set, forwards extracted text to a search sink, and archives raw
// artifacts to disk.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/DimitriTimoz/open-finder/internal/config"
	"github.com/DimitriTimoz/open-finder/internal/crawl"
	"github.com/DimitriTimoz/open-finder/internal/fetch"
	"github.com/DimitriTimoz/open-finder/internal/fingerprint"
	"github.com/DimitriTimoz/open-finder/internal/frontier"
	"github.com/DimitriTimoz/open-finder/internal/journal"
	"github.com/DimitriTimoz/open-finder/internal/metrics"
	"github.com/DimitriTimoz/open-finder/internal/packager"
	"github.com/DimitriTimoz/open-finder/internal/report"
	"github.com/DimitriTimoz/open-finder/internal/searchsink"
	"github.com/DimitriTimoz/open-finder/internal/sitemap"
	"github.com/DimitriTimoz/open-finder/internal/store"
	"github.com/DimitriTimoz/open-finder/internal/store/csvbackend"
	"github.com/DimitriTimoz/open-finder/internal/store/jsonbackend"
	"github.com/DimitriTimoz/open-finder/internal/store/postgres"
	"github.com/DimitriTimoz/open-finder/internal/store/sqlite"
	"github.com/DimitriTimoz/open-finder/internal/weburl"
)

var (
	flagResume    bool
	flagSitemap   string
	flagConfigDir string
)

// sinkAdapter bridges fetch.Document to searchsink.Document: fetch does not
// import searchsink, so the two Document types are structurally identical
// but distinct; this is the seam where they meet.
type sinkAdapter struct {
	client *searchsink.Client
}

func (s sinkAdapter) Publish(ctx context.Context, doc fetch.Document) error {
	return s.client.Publish(ctx, searchsink.Document{
		URL:     doc.URL,
		Content: doc.Content,
		Kind:    doc.Kind,
		Hash:    doc.Hash,
	})
}

func main() {
	root := &cobra.Command{
		Use:   "open-finder",
		Short: "A focused, CAS-aware single-origin web crawler",
		RunE:  run,
	}

	fs := root.Flags()
	fs.Int("concurrency", 20, "number of concurrent in-flight fetches")
	fs.String("cas-host", "", "hostname of the CAS login server, empty disables CAS interception")
	fs.StringSlice("allowed-domains", nil, "domains the crawl is scoped to; empty allows every host")
	fs.StringSlice("blacklist", nil, "URL prefixes the crawl must never fetch")
	fs.String("data-dir", "./data", "directory for journals and packaged artifacts")
	fs.Duration("timeout", 0, "per-request timeout, 0 uses the fetcher default")
	fs.Bool("track-edges", false, "persist the discovery graph's edges.csv")
	fs.String("search-sink-url", "", "search sink base URL, empty uses the sink's built-in default")
	fs.String("search-sink-index", "", "search sink index name, empty uses the sink's built-in default")
	fs.String("search-sink-key", "", "search sink bearer key")
	fs.String("store-dsn", "", "optional queryable store DSN: a .csv/.json path, sqlite://path, or postgres://...")
	fs.Int("metrics-port", 0, "port to expose Prometheus /metrics on, 0 disables it")
	fs.BoolVar(&flagResume, "resume", false, "skip the stdin seed prompt and resume from the journal in data-dir")
	fs.StringVar(&flagSitemap, "sitemap", "", "optional sitemap URL to seed discovery from")
	fs.StringVar(&flagConfigDir, "config-dir", "", "directory to also search for config.yaml")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags(), flagConfigDir)
	if err != nil {
		return fmt.Errorf("open-finder: %w", err)
	}

	log := slog.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsPort > 0 {
		srv := metrics.Start(cfg.MetricsPort)
		defer srv.Stop(context.Background())
	}

	fr := frontier.New(cfg.TrackEdges)
	jr, err := journal.New(cfg.DataDir, cfg.TrackEdges)
	if err != nil {
		return fmt.Errorf("open-finder: opening journal: %w", err)
	}
	defer jr.Close()

	seeds, err := collectSeeds(cfg.DataDir, fr)
	if err != nil {
		return fmt.Errorf("open-finder: %w", err)
	}
	for _, s := range seeds {
		fr.Add(s)
	}

	storeBackend, err := openStoreBackend(ctx, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("open-finder: opening store: %w", err)
	}
	if storeBackend != nil {
		defer storeBackend.Close()
	}

	pkg, err := packager.New(cfg.DataDir, packager.ZstdArchiver{}, log)
	if err != nil {
		return fmt.Errorf("open-finder: starting packager: %w", err)
	}
	go pkg.Run(ctx)

	fetcher, err := fetch.New(fetch.Config{
		CASHost:     cfg.CASHost,
		Extractor:   nil,
		Sink:        sinkAdapter{searchsink.New(searchsink.Config{Endpoint: cfg.SearchSinkURL, Index: cfg.SearchSinkIndex, Key: cfg.SearchSinkKey})},
		PackageDir:  pkg,
		Fingerprint: fingerprint.ProfileChrome,
		Timeout:     cfg.Timeout,
		Store:       storeBackend,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("open-finder: building fetcher: %w", err)
	}

	if flagSitemap != "" {
		sm := sitemap.New(fetcher.Client(), log)
		urls, err := sm.FetchSitemap(ctx, flagSitemap)
		if err != nil {
			log.Warn("open-finder: sitemap fetch failed", "url", flagSitemap, "err", err)
		}
		for _, raw := range urls {
			if u, err := weburl.Parse(raw); err == nil {
				fr.Add(u)
			}
		}
	}

	scheduler := crawl.New(crawl.Config{
		Frontier:           fr,
		Fetcher:            fetcher,
		Journal:            jr,
		Allowed:            weburl.AllowedHosts(cfg.AllowedDomains),
		Blacklist:          weburl.Blacklist(cfg.Blacklist),
		ConcurrentRequests: cfg.Concurrency,
		Logger:             log,
	})

	start := time.Now()
	runErr := scheduler.Run(ctx)

	if storeBackend != nil {
		records, qerr := storeBackend.Query(context.Background(), store.Filter{Since: &start})
		if qerr == nil {
			summary := report.GenerateSummary(records)
			if werr := report.WriteText(os.Stdout, summary); werr != nil {
				log.Warn("open-finder: writing report", "err", werr)
			}
		}
	}

	return runErr
}

// collectSeeds returns the seed URLs for this run: read from standard input
// first, falling back to replaying the journal when stdin yields nothing
// and a prior run's journal exists. --resume short-circuits straight to the
// journal, skipping stdin entirely.
func collectSeeds(dataDir string, fr *frontier.Frontier) ([]weburl.URL, error) {
	if flagResume {
		if err := journal.Replay(dataDir, fr); err != nil {
			return nil, fmt.Errorf("replaying journal: %w", err)
		}
		return nil, nil
	}

	var seeds []weburl.URL
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		u, err := weburl.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("parsing seed %q: %w", line, err)
		}
		seeds = append(seeds, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(seeds) == 0 && journal.Resume(dataDir) {
		if err := journal.Replay(dataDir, fr); err != nil {
			return nil, fmt.Errorf("replaying journal: %w", err)
		}
		return nil, nil
	}

	return seeds, nil
}

// openStoreBackend resolves the optional queryable store from a DSN: a
// sqlite:// or postgres:// URL scheme selects that backend, a .json
// extension selects NDJSON, anything else is treated as a CSV path. An
// empty DSN disables the store (nil, nil).
func openStoreBackend(ctx context.Context, dsn string) (store.Backend, error) {
	switch {
	case dsn == "":
		return nil, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.New(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case filepath.Ext(dsn) == ".json":
		return jsonbackend.New(dsn)
	default:
		return csvbackend.New(dsn)
	}
}
