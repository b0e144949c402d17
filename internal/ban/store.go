// Package ban provides the Redis-backed ban ledger. Every ban the engine
// issues is mirrored here as a simple key-value record:
//
//	Key:   modban:<chat_id>:<user_id>
//	Value: <reason>
//
// Other platform services consult the ledger for enforcement (gateway-side
// rejects, review tooling). The engine itself only writes it: moderation
// decisions run entirely on in-process state, so a Redis outage degrades the
// ledger, never the engine.
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BanPrefix is the Redis key prefix for ban records.
const BanPrefix = "modban:"

// Store manages ban records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a ban ledger using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(chatID, userID int64) string {
	return fmt.Sprintf("%s%d:%d", BanPrefix, chatID, userID)
}

// RecordBan writes a permanent ban record for (chatID, userID).
func (s *Store) RecordBan(ctx context.Context, chatID, userID int64, reason string) error {
	if err := s.client.Set(ctx, key(chatID, userID), reason, 0).Err(); err != nil {
		return fmt.Errorf("ban: record: %w", err)
	}
	return nil
}

// RecordTimedBan writes a ban record that expires after duration, for
// restrictions that are lifted automatically.
func (s *Store) RecordTimedBan(ctx context.Context, chatID, userID int64, duration time.Duration, reason string) error {
	if err := s.client.Set(ctx, key(chatID, userID), reason, duration).Err(); err != nil {
		return fmt.Errorf("ban: record timed: %w", err)
	}
	return nil
}

// ClearBan removes the ban record for (chatID, userID) immediately.
func (s *Store) ClearBan(ctx context.Context, chatID, userID int64) error {
	if err := s.client.Del(ctx, key(chatID, userID)).Err(); err != nil {
		return fmt.Errorf("ban: clear: %w", err)
	}
	return nil
}

// IsBanned checks whether (chatID, userID) has a ledger record.
// Returns (isBanned, reason, error). Redis errors are returned so callers
// can decide how to handle them.
func (s *Store) IsBanned(ctx context.Context, chatID, userID int64) (bool, string, error) {
	reason, err := s.client.Get(ctx, key(chatID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("ban: lookup: %w", err)
	}
	return true, reason, nil
}
