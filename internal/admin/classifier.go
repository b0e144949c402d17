// Package admin answers "is this user an admin of this chat". The check is
// fail-closed: any role the platform does not report as administrator or
// owner, including a failed lookup, counts as not-admin. Privilege must
// never widen because a role query could not complete.
package admin

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/whisper/modengine/internal/platform"
)

const (
	// cacheSize bounds the number of (chat, user) roles kept in memory.
	cacheSize = 4096

	// cacheTTL is how long a successfully-read role is trusted before the
	// platform is asked again. Short enough that promotions and demotions
	// take effect quickly.
	cacheTTL = 30 * time.Second
)

type cacheKey struct {
	chatID int64
	userID int64
}

// Classifier performs cached role lookups through the platform client.
// Construct with New; safe for concurrent use.
type Classifier struct {
	actions platform.Actions
	cache   *expirable.LRU[cacheKey, platform.Role]
}

// New returns a Classifier backed by the given platform client.
func New(actions platform.Actions) *Classifier {
	return &Classifier{
		actions: actions,
		cache:   expirable.NewLRU[cacheKey, platform.Role](cacheSize, nil, cacheTTL),
	}
}

// IsAdmin reports whether userID is an administrator or the owner of chatID.
// Lookup failures are swallowed and count as not-admin. Only successful
// role reads are cached; errors are retried on the next call.
func (c *Classifier) IsAdmin(ctx context.Context, chatID, userID int64) bool {
	key := cacheKey{chatID: chatID, userID: userID}

	role, ok := c.cache.Get(key)
	if !ok {
		var err error
		role, err = c.actions.GetRole(ctx, chatID, userID)
		if err != nil {
			return false
		}
		c.cache.Add(key, role)
	}

	return role == platform.RoleAdmin || role == platform.RoleOwner
}

// Forget drops the cached role for (chatID, userID), forcing the next
// IsAdmin call to re-query the platform.
func (c *Classifier) Forget(chatID, userID int64) {
	c.cache.Remove(cacheKey{chatID: chatID, userID: userID})
}
