package services

import (
	"sync"
)

// DefaultDedupCapacity bounds how many recent event IDs are remembered
const DefaultDedupCapacity = 100

// Deduplicator suppresses redelivered transport events. The window is
// instance-local: it guarantees no duplicate within one instance's
// lifetime and eviction window, not a cluster-wide exactly-once.
type Deduplicator struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string // FIFO eviction, oldest first
}

// NewDeduplicator creates a deduplicator remembering up to capacity
// distinct event IDs (DefaultDedupCapacity when capacity <= 0)
func NewDeduplicator(capacity int) *Deduplicator {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &Deduplicator{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// ShouldProcess returns true the first time an event ID is seen and
// false on redelivery. At capacity the oldest remembered ID is evicted.
func (d *Deduplicator) ShouldProcess(eventID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[eventID]; exists {
		return false
	}

	if len(d.order) >= d.capacity {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}

	d.seen[eventID] = struct{}{}
	d.order = append(d.order, eventID)
	return true
}

// Len returns how many event IDs are currently remembered
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
