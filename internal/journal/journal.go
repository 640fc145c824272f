// Package journal implements the crawler's crash-resumable, append-only
// CSV record of the crawl's traversal state: fetched URLs and their
// status, the pending frontier snapshot, and (optionally) the discovery
// graph's edges.
package journal

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/DimitriTimoz/open-finder/internal/frontier"
	"github.com/DimitriTimoz/open-finder/internal/weburl"
)

const (
	fetchedsName = "fetcheds.csv"
	toFetchName  = "to_fetch.csv"
	edgesName    = "edges.csv"
)

// Journal writes the three CSV files described by the on-disk contract:
// fetcheds.csv and edges.csv are appended to; to_fetch.csv is rewritten in
// full on every flush since it mirrors the current frontier snapshot.
type Journal struct {
	mu         sync.Mutex
	dir        string
	trackEdges bool
	fetcheds   *os.File
	edges      *os.File
}

// New opens (creating if necessary) the journal files under dir, writing
// CSV headers to any file created fresh.
func New(dir string, trackEdges bool) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: creating dir: %w", err)
	}

	fetcheds, err := openAppend(filepath.Join(dir, fetchedsName), "status;label\n")
	if err != nil {
		return nil, err
	}

	j := &Journal{dir: dir, trackEdges: trackEdges, fetcheds: fetcheds}

	if trackEdges {
		edges, err := openAppend(filepath.Join(dir, edgesName), "source;target\n")
		if err != nil {
			fetcheds.Close()
			return nil, err
		}
		j.edges = edges
	}

	return j, nil
}

func openAppend(path, header string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if _, err := f.WriteString(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("journal: writing header to %s: %w", path, err)
		}
	}
	return f, nil
}

// Flush appends buffered save entries and edges, and rewrites to_fetch.csv
// with the current frontier snapshot. A write failure panics the process:
// the journal is the only durable record of traversal state, and silently
// continuing past a failed flush risks losing it (this mirrors the
// source's own fail-fast behavior on disk-full, an open question the
// system leaves unresolved rather than papered over).
func (j *Journal) Flush(saves []frontier.SaveEntry, pending []weburl.URL, edges []frontier.Edge) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(saves) > 0 {
		var b strings.Builder
		for _, s := range saves {
			fmt.Fprintf(&b, "%d;%s\n", s.Status, s.URL.String())
		}
		if _, err := j.fetcheds.WriteString(b.String()); err != nil {
			panic(fmt.Errorf("journal: writing fetcheds.csv: %w", err))
		}
	}

	if err := j.rewriteToFetch(pending); err != nil {
		panic(fmt.Errorf("journal: rewriting to_fetch.csv: %w", err))
	}

	if j.trackEdges && len(edges) > 0 {
		var b strings.Builder
		for _, e := range edges {
			fmt.Fprintf(&b, "%s;%s\n", e.From.String(), e.To.String())
		}
		if _, err := j.edges.WriteString(b.String()); err != nil {
			panic(fmt.Errorf("journal: writing edges.csv: %w", err))
		}
	}
}

func (j *Journal) rewriteToFetch(pending []weburl.URL) error {
	path := filepath.Join(j.dir, toFetchName)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"url"}); err != nil {
		f.Close()
		return err
	}
	for _, u := range pending {
		if err := w.Write([]string{u.String()}); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Close closes the underlying journal files.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.fetcheds.Close()
	if j.edges != nil {
		if eerr := j.edges.Close(); err == nil {
			err = eerr
		}
	}
	return err
}

// Resume reports whether both fetcheds.csv and to_fetch.csv already exist
// under dir — the condition spec.md's resume semantics gate on.
func Resume(dir string) bool {
	_, errF := os.Stat(filepath.Join(dir, fetchedsName))
	_, errT := os.Stat(filepath.Join(dir, toFetchName))
	return errF == nil && errT == nil
}

// Replay loads a prior run's journal into f: every row of to_fetch.csv is
// re-added to the frontier via Add, and every row of fetcheds.csv has its
// URL hash marked known so it is never re-dispatched. Edges are never
// replayed.
func Replay(dir string, f *frontier.Frontier) error {
	if err := replayToFetch(filepath.Join(dir, toFetchName), f); err != nil {
		return err
	}
	return replayFetcheds(filepath.Join(dir, fetchedsName), f)
}

func replayToFetch(path string, f *frontier.Frontier) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("journal: opening %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if u, err := weburl.Parse(line); err == nil {
			f.Add(u)
		}
	}
	return scanner.Err()
}

func replayFetcheds(path string, f *frontier.Frontier) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("journal: opening %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		line := scanner.Text()
		parts := strings.SplitN(line, ";", 2)
		if len(parts) != 2 {
			continue
		}
		if u, err := weburl.Parse(parts[1]); err == nil {
			f.MarkKnown(u)
		}
	}
	return scanner.Err()
}
