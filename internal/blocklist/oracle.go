// Package blocklist implements the read-only blocklist oracle of spec
// section 4.7: a cached is_blocked(mint, now) lookup that fails open on
// read error.
package blocklist

import (
	"context"
	"sync"
	"time"

	"solflow/internal/logging"
	"solflow/internal/models"
)

// Reader is the subset of the store needed to refresh the cache. Defined
// here (not in internal/store) so the oracle depends on a narrow
// interface rather than the whole store writer.
type Reader interface {
	ListBlocklist(ctx context.Context) ([]models.BlocklistEntry, error)
}

// Oracle answers IsBlocked from an in-process cache refreshed
// periodically from the store. A failed refresh never blocks anything new:
// it keeps the previous cache, so a mint is reported blocked only if it was
// in the last successfully loaded entry set (false for every mint when no
// refresh has succeeded yet).
type Oracle struct {
	reader Reader
	log    *logging.Logger

	mu      sync.RWMutex
	entries map[string]models.BlocklistEntry
}

func New(reader Reader) *Oracle {
	return &Oracle{
		reader:  reader,
		log:     logging.New("Blocklist"),
		entries: make(map[string]models.BlocklistEntry),
	}
}

// Refresh reloads the cache from the store. Call periodically from a
// background task; a failure here is logged and leaves the previous
// cache contents in place (fail-open by staleness rather than by
// emptiness).
func (o *Oracle) Refresh(ctx context.Context) {
	entries, err := o.reader.ListBlocklist(ctx)
	if err != nil {
		o.log.Printf("refresh failed, keeping previous cache: %v", err)
		return
	}
	next := make(map[string]models.BlocklistEntry, len(entries))
	for _, e := range entries {
		next[e.Mint] = e
	}
	o.mu.Lock()
	o.entries = next
	o.mu.Unlock()
}

// IsBlocked reports whether mint is actively blocked at now.
func (o *Oracle) IsBlocked(mint string, now time.Time) bool {
	o.mu.RLock()
	entry, ok := o.entries[mint]
	o.mu.RUnlock()
	if !ok {
		return false
	}
	return entry.Active(now)
}

// RunRefreshLoop refreshes the cache on the given interval until ctx is
// cancelled, mirroring the teacher's single-ticker background-task idiom
// (internal/ingester/committer.go).
func (o *Oracle) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	o.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Refresh(ctx)
		}
	}
}
