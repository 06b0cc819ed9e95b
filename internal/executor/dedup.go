package executor

import (
	"sync"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Dedup prevents the same candidate from being admitted more than once
// within a time-to-live window. Signals are keyed by symbol, direction and
// triggering bar, not by ID: a replayed or duplicated feed event produces
// a fresh UUID but the same bar. Safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup instance with the given ttl window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// key identifies the signal by its symbol, direction and triggering bar.
func key(sig domain.Signal) string {
	return sig.Symbol + "|" + string(sig.Direction) + "|" + sig.BarTime.UTC().Format(time.RFC3339)
}

// IsDuplicate reports whether an equivalent signal has been seen within the
// TTL window. Unseen (or expired) signals are recorded and admitted.
func (d *Dedup) IsDuplicate(sig domain.Signal) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	k := key(sig)
	if lastSeen, ok := d.seen[k]; ok && now.Sub(lastSeen) < d.ttl {
		return true
	}
	d.seen[k] = now
	return false
}

// Cleanup removes entries older than the TTL. Called periodically to keep
// the map bounded.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, k)
		}
	}
}
