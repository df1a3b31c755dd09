package usecase

import (
	"sync"
	"time"
)

// Deduper remembers recently seen message ids so gateway redeliveries
// are processed once
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewDeduper creates a Deduper that forgets ids after ttl
func NewDeduper(ttl time.Duration) *Deduper {
	return &Deduper{ttl: ttl, seen: make(map[string]time.Time)}
}

// FirstSeen records id and reports whether it was not seen within ttl.
// Events without an id are never deduplicated.
func (d *Deduper) FirstSeen(id string, now time.Time) bool {
	if id == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return false
	}
	d.seen[id] = now
	return true
}

// Sweep forgets ids older than ttl
func (d *Deduper) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, id)
			removed++
		}
	}
	return removed
}
