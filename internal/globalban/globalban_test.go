package globalban

import (
	"context"
	"errors"
	"testing"

	"github.com/whisper/modengine/internal/directory"
	"github.com/whisper/modengine/internal/event"
	"github.com/whisper/modengine/internal/platform/platformtest"
)

func knownChats(ids ...int64) *directory.Directory {
	d := directory.New()
	for _, id := range ids {
		d.Observe(event.Chat{ID: id, Type: event.ChatGroup}, event.User{})
	}
	return d
}

func TestExecute_AllSucceed(t *testing.T) {
	fake := platformtest.NewFake()
	c := New(fake, knownChats(1, 2, 3), nil)

	report := c.Execute(context.Background(), 42, "test")

	if report.Banned != 3 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 3 banned, 0 failed", report)
	}
	bans := fake.CallsTo("BanUser")
	if len(bans) != 3 {
		t.Fatalf("BanUser called %d times, want 3", len(bans))
	}
	seen := map[int64]bool{}
	for _, b := range bans {
		if b.UserID != 42 || !b.Revoke {
			t.Errorf("ban call %+v, want user 42 with revoke=true", b)
		}
		seen[b.ChatID] = true
	}
	if len(seen) != 3 {
		t.Errorf("banned in chats %v, want 3 distinct chats", seen)
	}
}

func TestExecute_PartialFailureCounted(t *testing.T) {
	fake := platformtest.NewFake()
	fake.FailFunc("BanUser", func(c platformtest.Call) error {
		if c.ChatID == 2 {
			return errors.New("not an admin there")
		}
		return nil
	})
	c := New(fake, knownChats(1, 2, 3), nil)

	report := c.Execute(context.Background(), 42, "test")

	if report.Banned != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v, want 2 banned, 1 failed", report)
	}
	if report.Banned+report.Failed != 3 {
		t.Fatalf("banned+failed = %d, want 3", report.Banned+report.Failed)
	}
}

func TestExecute_AllFail(t *testing.T) {
	fake := platformtest.NewFake()
	fake.Fail("BanUser", errors.New("kicked out"))
	c := New(fake, knownChats(1, 2), nil)

	report := c.Execute(context.Background(), 42, "test")

	if report.Banned != 0 || report.Failed != 2 {
		t.Fatalf("report = %+v, want 0 banned, 2 failed", report)
	}
}

func TestExecute_NoKnownChats(t *testing.T) {
	fake := platformtest.NewFake()
	c := New(fake, directory.New(), nil)

	report := c.Execute(context.Background(), 42, "test")

	if report.Banned != 0 || report.Failed != 0 {
		t.Fatalf("report = %+v, want zero report for zero chats", report)
	}
	if n := len(fake.Calls()); n != 0 {
		t.Fatalf("%d platform calls for zero chats, want 0", n)
	}
}

type ledgerStub struct{ records []int64 }

func (l *ledgerStub) RecordBan(_ context.Context, chatID, _ int64, _ string) error {
	l.records = append(l.records, chatID)
	return nil
}

func TestExecute_LedgerRecordsOnlySuccesses(t *testing.T) {
	fake := platformtest.NewFake()
	fake.FailFunc("BanUser", func(c platformtest.Call) error {
		if c.ChatID == 2 {
			return errors.New("no rights")
		}
		return nil
	})
	ledger := &ledgerStub{}
	c := New(fake, knownChats(1, 2), ledger)
	c.concurrency = 1 // keep the stub free of data races

	c.Execute(context.Background(), 42, "test")

	if len(ledger.records) != 1 {
		t.Fatalf("ledger has %d records, want 1 (failed chat excluded)", len(ledger.records))
	}
	if ledger.records[0] != 1 {
		t.Errorf("ledger recorded chat %d, want 1", ledger.records[0])
	}
}
