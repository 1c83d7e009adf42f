package crawler

import (
	"github.com/vestigolabs/vestigo/internal/common"
)

// FrontierEntry is one not-yet-visited URL in the crawl queue
type FrontierEntry struct {
	URL       string
	Depth     int
	Discovery string
	Order     int
}

// Frontier is the FIFO queue driving the crawl's BFS order. URLs are
// deduplicated on enqueue by normalized key, so a crawl never revisits a
// normalized URL. Size is capped to keep frontier growth bounded relative to
// the page budget.
type Frontier struct {
	entries []FrontierEntry
	head    int
	seen    map[string]bool
	maxSize int
	order   int
}

// NewFrontier creates a frontier holding at most maxSize pending entries
func NewFrontier(maxSize int) *Frontier {
	return &Frontier{
		seen:    make(map[string]bool),
		maxSize: maxSize,
	}
}

// Push enqueues a URL unless it was already seen or the frontier is full.
// Returns true when the URL was accepted.
func (f *Frontier) Push(url string, depth int, discovery string) bool {
	key := common.DedupURLKey(url)
	if key == "" || f.seen[key] {
		return false
	}
	if f.Len() >= f.maxSize {
		return false
	}

	f.seen[key] = true
	f.order++
	f.entries = append(f.entries, FrontierEntry{
		URL:       url,
		Depth:     depth,
		Discovery: discovery,
		Order:     f.order,
	})
	return true
}

// Pop dequeues the earliest-enqueued entry
func (f *Frontier) Pop() (FrontierEntry, bool) {
	if f.head >= len(f.entries) {
		return FrontierEntry{}, false
	}
	entry := f.entries[f.head]
	f.head++
	return entry, true
}

// Len returns the number of pending entries
func (f *Frontier) Len() int {
	return len(f.entries) - f.head
}

// Seen reports whether a URL has ever been enqueued this run
func (f *Frontier) Seen(url string) bool {
	return f.seen[common.DedupURLKey(url)]
}
