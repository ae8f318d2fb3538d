package syncer

import (
	"strings"
	"sync"
	"time"
)

// echoRetention is how long an uploaded item's id is remembered for
// self-echo suppression. Notifications normally arrive within seconds;
// ten minutes covers a badly delayed redelivery.
const echoRetention = 10 * time.Minute

// echoEntry records one item this device uploaded.
type echoEntry struct {
	itemID    string
	createdAt time.Time
}

// EchoTracker remembers recently uploaded item ids per owner so the
// notification listener can ignore notifications caused by this
// device's own uploads. Lookups are one-shot: consuming an entry
// removes it. Safe for concurrent Record/TryConsume from different
// loops.
type EchoTracker struct {
	mu      sync.Mutex
	entries map[string][]echoEntry

	// now is the clock; tests override it.
	now func() time.Time
}

// NewEchoTracker returns an empty tracker.
func NewEchoTracker() *EchoTracker {
	return &EchoTracker{
		entries: make(map[string][]echoEntry),
		now:     time.Now,
	}
}

// Record appends an entry for the owner and trims anything that has
// aged out of the retention window.
func (e *EchoTracker) Record(owner, itemID string, createdAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := append(e.entries[owner], echoEntry{itemID: itemID, createdAt: createdAt})
	e.entries[owner] = e.trim(list)
}

// TryConsume looks for a matching entry (case-insensitive id) and
// removes it. Returns true exactly once per recorded entry. Expired
// entries are never matched.
func (e *EchoTracker) TryConsume(owner, itemID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.trim(e.entries[owner])

	for i, entry := range list {
		if strings.EqualFold(entry.itemID, itemID) {
			e.entries[owner] = append(list[:i], list[i+1:]...)

			return true
		}
	}

	e.entries[owner] = list

	return false
}

// trim drops entries older than the retention window. Entries are
// appended in time order, so the survivors form a suffix.
func (e *EchoTracker) trim(list []echoEntry) []echoEntry {
	cutoff := e.now().Add(-echoRetention)

	first := 0
	for first < len(list) && list[first].createdAt.Before(cutoff) {
		first++
	}

	return list[first:]
}
