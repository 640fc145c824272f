// Package frontier implements the crawler's deduplicated, resumable work
// queue: an ordered FIFO of URLs awaiting dispatch, a set of every URL
// hash ever observed, and a buffer of (url, status) pairs awaiting a
// journal flush.
package frontier

import (
	"sync"

	"github.com/DimitriTimoz/open-finder/internal/metrics"
	"github.com/DimitriTimoz/open-finder/internal/weburl"
)

// SaveEntry is one row destined for the fetched-URLs journal.
type SaveEntry struct {
	URL    weburl.URL
	Status int
}

// Edge is one (referer, target) discovery, buffered only when edge
// tracking is enabled.
type Edge struct {
	From weburl.URL
	To   weburl.URL
}

// Frontier owns the scheduler's pending-work state. The scheduler is its
// owner, with fetch tasks returning fresh values rather than mutating shared
// state. Every method takes the mutex, so a Frontier is safe for concurrent
// use: admission and drain running on the same goroutine never contend it,
// and other goroutines (a metrics reader, say) can inspect it safely.
type Frontier struct {
	mu         sync.Mutex
	toFetch    []weburl.URL
	knownHash  map[uint64]struct{}
	toSave     []SaveEntry
	edges      []Edge
	trackEdges bool
}

// New creates an empty Frontier with room for 4096 queued URLs and about
// one million known hashes up front; both grow on demand past those sizes.
func New(trackEdges bool) *Frontier {
	return &Frontier{
		toFetch:    make([]weburl.URL, 0, 4096),
		knownHash:  make(map[uint64]struct{}, 1<<20),
		trackEdges: trackEdges,
	}
}

// Add inserts url's hash into known_hash and enqueues it, unless the hash
// is already known. The hash is inserted before the enqueue becomes
// visible to callers, so Add is the one place the "known before or at
// enqueue" invariant is established.
func (f *Frontier) Add(url weburl.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(url)
}

func (f *Frontier) addLocked(url weburl.URL) {
	h := url.Hash()
	if _, ok := f.knownHash[h]; ok {
		return
	}
	f.knownHash[h] = struct{}{}
	f.toFetch = append(f.toFetch, url)
	metrics.FrontierKnownHashes.Set(float64(len(f.knownHash)))
}

// AddWithReferer is Add plus an edge record, used only when edge tracking
// is enabled.
func (f *Frontier) AddWithReferer(from, to weburl.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(to)
	if f.trackEdges {
		f.edges = append(f.edges, Edge{From: from, To: to})
	}
}

// MarkKnown records a hash as known without enqueueing the URL, used to
// replay a prior run's fetcheds.csv on resume.
func (f *Frontier) MarkKnown(url weburl.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.knownHash[url.Hash()] = struct{}{}
	metrics.FrontierKnownHashes.Set(float64(len(f.knownHash)))
}

// Dequeue pops the next URL in FIFO order. The second return is false if
// the frontier is empty.
func (f *Frontier) Dequeue() (weburl.URL, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toFetch) == 0 {
		return weburl.URL{}, false
	}
	u := f.toFetch[0]
	f.toFetch = f.toFetch[1:]
	return u, true
}

// Len reports the number of URLs currently queued for dispatch.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toFetch)
}

// KnownCount reports the number of distinct URL hashes ever observed.
func (f *Frontier) KnownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.knownHash)
}

// IsKnown reports whether url's hash has ever been observed by the
// frontier, used by the scheduler to detect a lost admission.
func (f *Frontier) IsKnown(url weburl.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.knownHash[url.Hash()]
	return ok
}

// RecordSave buffers a (url, status) pair for the next journal flush.
func (f *Frontier) RecordSave(url weburl.URL, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toSave = append(f.toSave, SaveEntry{URL: url, Status: status})
}

// PendingSaves reports how many (url, status) pairs are buffered.
func (f *Frontier) PendingSaves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toSave)
}

// DrainSaves returns and clears the buffered save entries.
func (f *Frontier) DrainSaves() []SaveEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.toSave
	f.toSave = nil
	return out
}

// DrainEdges returns and clears the buffered edges.
func (f *Frontier) DrainEdges() []Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.edges
	f.edges = nil
	return out
}

// Snapshot returns the URLs currently queued, without draining them, for
// a to_fetch.csv rewrite.
func (f *Frontier) Snapshot() []weburl.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]weburl.URL, len(f.toFetch))
	copy(out, f.toFetch)
	return out
}
