package audit

import (
	"sync"
	"time"

	"courier/internal/constants"
)

// Entry is a free-form audit record. Every entry gets a unix "ts" stamp on
// insertion unless the caller already set one.
type Entry map[string]interface{}

// Ring is a bounded append-only buffer; once full, the oldest entry is
// evicted. Used for the debug surface, not for durability.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = constants.AuditBufferSize
	}
	return &Ring{cap: capacity}
}

func (r *Ring) Add(e Entry) {
	stamped := make(Entry, len(e)+1)
	for k, v := range e {
		stamped[k] = v
	}
	if _, ok := stamped["ts"]; !ok {
		stamped["ts"] = time.Now().Unix()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.cap {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, stamped)
}

// Snapshot returns a copy, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Trail groups the three pipeline audit rings: accepted events, rejections
// and processing errors, and reply attempts.
type Trail struct {
	Events  *Ring
	Errors  *Ring
	Replies *Ring
}

func NewTrail() *Trail {
	return &Trail{
		Events:  NewRing(constants.AuditBufferSize),
		Errors:  NewRing(constants.AuditBufferSize),
		Replies: NewRing(constants.AuditBufferSize),
	}
}
