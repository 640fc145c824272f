// Package crawl implements the scheduler: the single cooperative loop that
// drives the bounded concurrent fetcher, folds discovered links back into
// the frontier, and periodically flushes the journal.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"

	"github.com/DimitriTimoz/open-finder/internal/fetch"
	"github.com/DimitriTimoz/open-finder/internal/frontier"
	"github.com/DimitriTimoz/open-finder/internal/journal"
	"github.com/DimitriTimoz/open-finder/internal/metrics"
	"github.com/DimitriTimoz/open-finder/internal/weburl"
)

// Defaults matching the system's fixed constants.
const (
	DefaultConcurrentRequests = 20
	saveFlushThreshold        = 300
	admissionYield            = time.Millisecond
)

// Config configures a Scheduler.
type Config struct {
	Frontier           *frontier.Frontier
	Fetcher            *fetch.Fetcher
	Journal            *journal.Journal
	Allowed            weburl.AllowedHosts
	Blacklist          weburl.Blacklist
	ConcurrentRequests int
	Logger             *slog.Logger
}

// Scheduler owns the admission/drain/flush loop described by the system's
// frontier-and-scheduler component.
type Scheduler struct {
	frontier  *frontier.Frontier
	fetcher   *fetch.Fetcher
	journal   *journal.Journal
	allowed   weburl.AllowedHosts
	blacklist weburl.Blacklist
	sem       *semaphore.Weighted
	inFlight  atomic.Int64
	log       *slog.Logger
}

// New builds a Scheduler. ConcurrentRequests defaults to 20 when zero.
func New(cfg Config) *Scheduler {
	n := cfg.ConcurrentRequests
	if n <= 0 {
		n = DefaultConcurrentRequests
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		frontier:  cfg.Frontier,
		fetcher:   cfg.Fetcher,
		journal:   cfg.Journal,
		allowed:   cfg.Allowed,
		blacklist: cfg.Blacklist,
		sem:       semaphore.NewWeighted(int64(n)),
		log:       log,
	}
}

type fetchOutcome struct {
	url weburl.URL
	pg  fetch.Page
	err error
}

// Run drives the scheduler to completion: it returns once the frontier is
// empty and no fetch is in flight, after a final journal flush. It also
// returns early, after flushing, if ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	completions := make(chan fetchOutcome)

	for s.frontier.Len() > 0 || s.inFlight.Load() > 0 {
		select {
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		default:
		}

		s.admit(ctx, completions)
		time.Sleep(admissionYield)

		if s.inFlight.Load() == 0 {
			continue
		}

		select {
		case outcome := <-completions:
			s.drain(outcome)
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		}

		if s.frontier.PendingSaves() > saveFlushThreshold {
			s.flush()
		}
	}

	s.flush()
	return nil
}

// admit dequeues URLs while there is capacity, applying the skip filter to
// each and spawning a fetch goroutine for everything that survives it.
func (s *Scheduler) admit(ctx context.Context, completions chan<- fetchOutcome) {
	for {
		if !s.sem.TryAcquire(1) {
			return
		}
		u, ok := s.frontier.Dequeue()
		if !ok {
			s.sem.Release(1)
			return
		}
		if !s.frontier.IsKnown(u) {
			s.sem.Release(1)
			s.log.Error("crawl: dequeued url missing from known hashes", "url", u.String())
			continue
		}
		if s.shouldSkip(u) {
			s.sem.Release(1)
			s.frontier.RecordSave(u, 0)
			s.log.Info("crawl: skip", "url", u.String())
			continue
		}

		s.inFlight.Add(1)
		metrics.InflightFetches.Set(float64(s.inFlight.Load()))
		go s.runFetch(ctx, u, completions)
	}
}

// shouldSkip implements the admission skip filter: media over HTTP(S),
// out-of-scope hosts, blacklisted prefixes, mailto links, and logout
// endpoints are never fetched.
func (s *Scheduler) shouldSkip(u weburl.URL) bool {
	scheme := u.Scheme()
	if (scheme == "http" || scheme == "https") && u.IsMedia() {
		return true
	}
	if !u.IsAllowedHost(s.allowed) {
		return true
	}
	if u.IsBlacklisted(s.blacklist) {
		return true
	}
	if strings.Contains(u.String(), "mailto") {
		return true
	}
	if strings.HasSuffix(u.String(), "logout") {
		return true
	}
	return false
}

// runFetch executes one fetch under a panic-catching barrier so a
// panicking extractor or detector cannot take down the scheduler loop.
func (s *Scheduler) runFetch(ctx context.Context, u weburl.URL, completions chan<- fetchOutcome) {
	defer s.sem.Release(1)
	defer func() {
		s.inFlight.Add(-1)
		metrics.InflightFetches.Set(float64(s.inFlight.Load()))
	}()

	var pc panics.Catcher
	var page fetch.Page
	var err error
	pc.Try(func() {
		page, err = s.fetcher.Fetch(ctx, u)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = fmt.Errorf("crawl: fetch panicked: %v", recovered.Value)
	}

	completions <- fetchOutcome{url: u, pg: page, err: err}
}

// drain processes one completed fetch: on success, folds discovered links
// back into the frontier and records the save entry; on failure, logs and
// moves on. One URL failing never tears down the run.
func (s *Scheduler) drain(outcome fetchOutcome) {
	if outcome.err != nil {
		// Never journaled: status 0 is reserved for the admission skip
		// filter, so a transport failure here must not be recorded as one.
		s.log.Warn("crawl: fetch failed", "url", outcome.url.String(), "err", outcome.err)
		return
	}

	for _, link := range outcome.pg.Links {
		s.frontier.AddWithReferer(outcome.pg.URL, link)
	}
	s.frontier.RecordSave(outcome.pg.URL, outcome.pg.Status)
	s.log.Info("crawl: fetched", "url", outcome.pg.URL.String(), "status", outcome.pg.Status)
}

func (s *Scheduler) flush() {
	saves := s.frontier.DrainSaves()
	pending := s.frontier.Snapshot()
	edges := s.frontier.DrainEdges()
	s.journal.Flush(saves, pending, edges)
}
