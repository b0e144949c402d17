package window

import (
	"sync"
	"testing"
	"time"
)

var testKey = Key{ChatID: 100, UserID: 7, Category: CategoryAdminText}

func TestRecordAndCheck_TriggersAtThreshold(t *testing.T) {
	s := NewStore()
	now := time.Now()

	// First K-1 messages stay below the threshold.
	for i := 0; i < 4; i++ {
		triggered, ids := s.RecordAndCheck(testKey, now.Add(time.Duration(i)*100*time.Millisecond), int64(i+1), 5, 3*time.Second)
		if triggered {
			t.Fatalf("message %d triggered below threshold", i+1)
		}
		if ids != nil {
			t.Fatalf("message %d returned ids %v below threshold", i+1, ids)
		}
	}

	// The K-th message within the window triggers with every recorded ID.
	triggered, ids := s.RecordAndCheck(testKey, now.Add(400*time.Millisecond), 5, 5, 3*time.Second)
	if !triggered {
		t.Fatal("threshold burst did not trigger")
	}
	if len(ids) != 5 {
		t.Fatalf("got %d ids, want 5", len(ids))
	}
	for i, id := range ids {
		if id != int64(i+1) {
			t.Errorf("ids[%d] = %d, want %d (chronological order)", i, id, i+1)
		}
	}

	// The window drained on trigger: the very next message starts at 1.
	if n := s.Len(testKey); n != 0 {
		t.Fatalf("window holds %d entries after trigger, want 0", n)
	}
	triggered, _ = s.RecordAndCheck(testKey, now.Add(500*time.Millisecond), 6, 5, 3*time.Second)
	if triggered {
		t.Fatal("message after drain re-triggered on the same burst")
	}
	if n := s.Len(testKey); n != 1 {
		t.Fatalf("window holds %d entries after drain+1, want 1", n)
	}
}

func TestRecordAndCheck_EvictsExpired(t *testing.T) {
	s := NewStore()
	now := time.Now()

	// Two old messages, outside the 3s window by the time of the burst.
	s.RecordAndCheck(testKey, now, 1, 5, 3*time.Second)
	s.RecordAndCheck(testKey, now.Add(time.Second), 2, 5, 3*time.Second)

	// Four fresh messages 10s later. The old two must count for nothing.
	late := now.Add(10 * time.Second)
	for i := 0; i < 3; i++ {
		triggered, _ := s.RecordAndCheck(testKey, late.Add(time.Duration(i)*100*time.Millisecond), int64(10+i), 5, 3*time.Second)
		if triggered {
			t.Fatalf("triggered with only %d fresh messages", i+1)
		}
	}
	if n := s.Len(testKey); n != 3 {
		t.Fatalf("window holds %d entries, want 3 (expired evicted)", n)
	}

	// Push to the threshold; the bulk-delete list must exclude expired IDs.
	s.RecordAndCheck(testKey, late.Add(300*time.Millisecond), 13, 5, 3*time.Second)
	triggered, ids := s.RecordAndCheck(testKey, late.Add(400*time.Millisecond), 14, 5, 3*time.Second)
	if !triggered {
		t.Fatal("fresh burst did not trigger")
	}
	for _, id := range ids {
		if id == 1 || id == 2 {
			t.Errorf("expired message %d leaked into the bulk-delete list", id)
		}
	}
	if len(ids) != 5 {
		t.Errorf("got %d ids, want 5", len(ids))
	}
}

func TestRecordAndCheck_BoundaryAgeKept(t *testing.T) {
	s := NewStore()
	now := time.Now()

	// An entry exactly window old is still inside the window (<=, not <).
	s.RecordAndCheck(testKey, now, 1, 3, 3*time.Second)
	s.RecordAndCheck(testKey, now.Add(time.Second), 2, 3, 3*time.Second)
	triggered, ids := s.RecordAndCheck(testKey, now.Add(3*time.Second), 3, 3, 3*time.Second)
	if !triggered {
		t.Fatal("entry at exact window age was evicted")
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}
}

func TestReset(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.RecordAndCheck(testKey, now, 1, 5, 3*time.Second)
	s.RecordAndCheck(testKey, now, 2, 5, 3*time.Second)
	s.Reset(testKey)

	if n := s.Len(testKey); n != 0 {
		t.Fatalf("window holds %d entries after Reset, want 0", n)
	}
}

func TestIndependentKeys(t *testing.T) {
	s := NewStore()
	now := time.Now()

	other := Key{ChatID: 100, UserID: 7, Category: CategoryMedia}
	s.RecordAndCheck(testKey, now, 1, 5, 3*time.Second)
	s.RecordAndCheck(other, now, 1, 20, 30*time.Minute)

	if s.Len(testKey) != 1 || s.Len(other) != 1 {
		t.Fatal("categories for the same (chat, user) shared a window")
	}
	if s.Tracked() != 2 {
		t.Fatalf("Tracked() = %d, want 2", s.Tracked())
	}
}

func TestRecordAndCheck_ConcurrentSameKey(t *testing.T) {
	s := NewStore()
	now := time.Now()

	// 100 goroutines hammer the same key with threshold 10. Per-key
	// linearization means exactly 10 triggers, each draining 10 ids.
	const total = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	triggers := 0
	collected := 0

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			triggered, ids := s.RecordAndCheck(testKey, now, id, 10, time.Hour)
			if triggered {
				mu.Lock()
				triggers++
				collected += len(ids)
				mu.Unlock()
			}
		}(int64(i))
	}
	wg.Wait()

	if triggers != total/10 {
		t.Errorf("got %d triggers, want %d", triggers, total/10)
	}
	if collected != total {
		t.Errorf("triggers drained %d ids total, want %d", collected, total)
	}
	if n := s.Len(testKey); n != 0 {
		t.Errorf("window holds %d entries after exact multiple of threshold, want 0", n)
	}
}
