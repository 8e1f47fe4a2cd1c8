package mirror

import (
	"time"
)

// FeedEntry is one line of the hit feed
type FeedEntry struct {
	At   time.Time
	Text string
}

// Feed is an append-only, size-bounded event log. Once full, adding an
// entry evicts the oldest one.
type Feed struct {
	buf   []FeedEntry
	start int // index of the oldest entry
	n     int
}

// NewFeed creates a feed holding at most size entries
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 1
	}
	return &Feed{buf: make([]FeedEntry, size)}
}

// Add records an entry as the newest
func (f *Feed) Add(e FeedEntry) {
	if f.n < len(f.buf) {
		f.buf[(f.start+f.n)%len(f.buf)] = e
		f.n++
		return
	}
	f.buf[f.start] = e
	f.start = (f.start + 1) % len(f.buf)
}

// Len returns the number of entries held
func (f *Feed) Len() int { return f.n }

// Cap returns the bound
func (f *Feed) Cap() int { return len(f.buf) }

// Entries returns a copy of the feed, most recent first
func (f *Feed) Entries() []FeedEntry {
	out := make([]FeedEntry, f.n)
	for i := 0; i < f.n; i++ {
		out[i] = f.buf[(f.start+f.n-1-i)%len(f.buf)]
	}
	return out
}

// Latest returns the newest entry
func (f *Feed) Latest() (FeedEntry, bool) {
	if f.n == 0 {
		return FeedEntry{}, false
	}
	return f.buf[(f.start+f.n-1)%len(f.buf)], true
}
