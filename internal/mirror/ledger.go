// Package mirror contains the copy-trading core: the dedup ledger, the
// pricing/sizing policy, and the engine that wires fill feeds to order
// placement.
package mirror

import "sync"

// Ledger is the fill dedup structure shared by every feed adapter in a
// session. It remembers fill ids up to a capacity, evicting the oldest id
// when full. Safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string // insertion order for FIFO eviction
	limit int
}

// NewLedger creates a ledger that holds at most limit ids.
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = 1000
	}
	return &Ledger{
		seen:  make(map[string]struct{}, limit),
		limit: limit,
	}
}

// Remember claims an id. It returns true if the id was not present and is
// now recorded, false if it was already known. The claim is atomic, so two
// adapters observing the same fill race for exactly one true result.
func (l *Ledger) Remember(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return false
	}
	l.seen[id] = struct{}{}
	l.order = append(l.order, id)

	if len(l.order) > l.limit {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.seen, oldest)
	}
	return true
}

// Has reports whether an id is currently remembered.
func (l *Ledger) Has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok
}

// Len returns the number of remembered ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}
