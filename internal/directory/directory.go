// Package directory maintains the process-wide identity cache built up as a
// side effect of observed traffic: which chats the engine has seen, and
// which user ID each public handle was last seen on. Both grow
// monotonically for the life of the process; a chat the engine was removed
// from stays known until a write to it fails, which callers tolerate.
package directory

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/whisper/modengine/internal/event"
)

// Directory is the handle->userID map plus the known-chat set. Construct
// with New; safe for concurrent use.
type Directory struct {
	handles *xsync.MapOf[string, int64]
	chats   *xsync.MapOf[int64, struct{}]
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{
		handles: xsync.NewMapOf[string, int64](),
		chats:   xsync.NewMapOf[int64, struct{}](),
	}
}

// Observe records what an event reveals: the chat (unless private) joins
// the known-chat set, and the user's handle, when present, maps to their ID.
// Handles are lower-cased; the last observation wins, so a handle that
// changed owners silently updates.
func (d *Directory) Observe(chat event.Chat, user event.User) {
	if !chat.IsPrivate() {
		d.chats.Store(chat.ID, struct{}{})
	}
	if user.Handle != "" && user.ID != 0 {
		d.handles.Store(strings.ToLower(user.Handle), user.ID)
	}
}

// LookupHandle resolves a handle (with or without the leading "@") to the
// user ID it was last seen on.
func (d *Directory) LookupHandle(handle string) (int64, bool) {
	handle = strings.ToLower(strings.TrimPrefix(handle, "@"))
	return d.handles.Load(handle)
}

// KnownChats returns a stable snapshot of every chat ID the engine has
// observed. The snapshot is safe to iterate while the set keeps growing.
func (d *Directory) KnownChats() []int64 {
	ids := make([]int64, 0, d.chats.Size())
	d.chats.Range(func(id int64, _ struct{}) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// ChatCount returns the number of known chats.
func (d *Directory) ChatCount() int {
	return d.chats.Size()
}
