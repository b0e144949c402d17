package ban

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Test chat IDs live in a range real chats never use, so cleanup can target
// them by pattern.
const testChat = int64(990000001)

// newTestStore creates a Store connected to a local Redis instance and
// removes leftover test keys before returning. Tests that call this helper
// require a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	clean := func() {
		iter := client.Scan(ctx, 0, BanPrefix+"99000000*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	clean()
	t.Cleanup(func() {
		clean()
		client.Close()
	})
	return NewStore(client)
}

func TestIsBanned_NoRecord(t *testing.T) {
	store := newTestStore(t)

	banned, reason, err := store.IsBanned(context.Background(), testChat, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banned {
		t.Errorf("expected no record, got banned (reason=%q)", reason)
	}
}

func TestRecordAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordBan(ctx, testChat, 2, "profanity in name"); err != nil {
		t.Fatalf("RecordBan() error: %v", err)
	}

	banned, reason, err := store.IsBanned(ctx, testChat, 2)
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if !banned || reason != "profanity in name" {
		t.Fatalf("IsBanned() = (%v, %q), want (true, %q)", banned, reason, "profanity in name")
	}

	if err := store.ClearBan(ctx, testChat, 2); err != nil {
		t.Fatalf("ClearBan() error: %v", err)
	}
	banned, _, err = store.IsBanned(ctx, testChat, 2)
	if err != nil {
		t.Fatalf("IsBanned() after clear error: %v", err)
	}
	if banned {
		t.Error("record survived ClearBan")
	}
}

func TestRecordTimedBan_Expires(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordTimedBan(ctx, testChat, 3, time.Second, "flood"); err != nil {
		t.Fatalf("RecordTimedBan() error: %v", err)
	}
	banned, _, err := store.IsBanned(ctx, testChat, 3)
	if err != nil || !banned {
		t.Fatalf("IsBanned() = (%v, err=%v), want banned", banned, err)
	}

	time.Sleep(1100 * time.Millisecond)

	banned, _, err = store.IsBanned(ctx, testChat, 3)
	if err != nil {
		t.Fatalf("IsBanned() after expiry error: %v", err)
	}
	if banned {
		t.Error("timed record did not expire")
	}
}

func TestRecordsAreScopedPerChatAndUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordBan(ctx, testChat, 4, "x"); err != nil {
		t.Fatalf("RecordBan() error: %v", err)
	}

	banned, _, _ := store.IsBanned(ctx, testChat, 5)
	if banned {
		t.Error("record leaked across users")
	}
	banned, _, _ = store.IsBanned(ctx, testChat+1, 4)
	if banned {
		t.Error("record leaked across chats")
	}
}
