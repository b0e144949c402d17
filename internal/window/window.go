// Package window implements the per-(chat, user, category) sliding-window
// message counters behind the spam rules. Each window is an ordered list of
// (timestamp, message ID) pairs; entries older than the window are evicted
// lazily on the next access, oldest first.
//
// The store is a concurrent map keyed by (chat, user, category). All
// read-modify-write cycles for one key run inside an atomic per-key Compute,
// so calls for the same key are linearized without blocking unrelated keys.
package window

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Category names the independent spam windows a single (chat, user) pair
// can accumulate.
type Category string

const (
	// CategoryAdminText counts plain messages from chat admins.
	CategoryAdminText Category = "admin-text"

	// CategoryMedia counts sticker/animation messages from any user.
	CategoryMedia Category = "media"
)

// Key identifies one window.
type Key struct {
	ChatID   int64
	UserID   int64
	Category Category
}

type entry struct {
	at    time.Time
	msgID int64
}

// Store holds every live window. Construct with NewStore; safe for
// concurrent use.
type Store struct {
	windows *xsync.MapOf[Key, []entry]
}

// NewStore returns an empty window store.
func NewStore() *Store {
	return &Store{windows: xsync.NewMapOf[Key, []entry]()}
}

// RecordAndCheck appends (now, msgID) to the window for key, evicts entries
// older than window, and checks the threshold. A burst exactly at the
// threshold counts as triggering.
//
// When the threshold is reached it returns (true, ids) where ids is every
// message ID that was in the window, in chronological order, and the window
// is drained in the same atomic step so the next message cannot re-trigger
// on the same burst.
func (s *Store) RecordAndCheck(key Key, now time.Time, msgID int64, threshold int, window time.Duration) (bool, []int64) {
	var (
		triggered bool
		ids       []int64
	)

	s.windows.Compute(key, func(old []entry, _ bool) ([]entry, bool) {
		// Evict expired entries, oldest first, then append. A fresh slice is
		// built so callers never alias state owned by the map.
		kept := make([]entry, 0, len(old)+1)
		for _, e := range old {
			if now.Sub(e.at) <= window {
				kept = append(kept, e)
			}
		}
		kept = append(kept, entry{at: now, msgID: msgID})

		if len(kept) >= threshold {
			triggered = true
			ids = make([]int64, len(kept))
			for i, e := range kept {
				ids[i] = e.msgID
			}
			// Drain: delete the key entirely.
			return nil, true
		}
		return kept, false
	})

	return triggered, ids
}

// Reset clears the window for key.
func (s *Store) Reset(key Key) {
	s.windows.Delete(key)
}

// Len returns the number of entries currently recorded for key, without
// evicting. Used by tests and gauges.
func (s *Store) Len(key Key) int {
	w, ok := s.windows.Load(key)
	if !ok {
		return 0
	}
	return len(w)
}

// Tracked returns the number of live windows across all keys.
func (s *Store) Tracked() int {
	return s.windows.Size()
}
