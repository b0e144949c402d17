package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/whisper/modengine/internal/directory"
	"github.com/whisper/modengine/internal/event"
	"github.com/whisper/modengine/internal/filter"
	"github.com/whisper/modengine/internal/platform/platformtest"
	"github.com/whisper/modengine/internal/window"
)

// adminsStub marks individual user IDs as admins, everyone else as members.
type adminsStub map[int64]bool

func (a adminsStub) IsAdmin(_ context.Context, _ int64, userID int64) bool { return a[userID] }

// fakeClock is a manually-advanced clock for window tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	eng   *Engine
	fake  *platformtest.Fake
	dir   *directory.Directory
	win   *window.Store
	clock *fakeClock
}

func newFixture(admins adminsStub) *fixture {
	f := &fixture{
		fake:  platformtest.NewFake(),
		dir:   directory.New(),
		win:   window.NewStore(),
		clock: &fakeClock{t: time.Unix(1700000000, 0)},
	}
	f.eng = New(Config{
		Actions:   f.fake,
		Filter:    filter.New(),
		Windows:   f.win,
		Directory: f.dir,
		Admins:    admins,
		Now:       f.clock.now,
	})
	return f
}

var group = event.Chat{ID: 100, Type: event.ChatSupergroup}

func msgEvent(user event.User, msg event.Message) event.Event {
	return event.Event{Kind: event.KindMessage, Chat: group, From: user, Message: &msg}
}

func TestChannelPostBanned(t *testing.T) {
	f := newFixture(nil)
	channel := event.Chat{ID: -500, Type: event.ChatChannel}

	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 1},
		event.Message{ID: 9, Text: "news", SenderChat: &channel}))

	dels := f.fake.CallsTo("DeleteMessage")
	if len(dels) != 1 || dels[0].MsgID != 9 {
		t.Fatalf("DeleteMessage calls = %+v, want one for msg 9", dels)
	}
	bans := f.fake.CallsTo("BanSenderChat")
	if len(bans) != 1 || bans[0].SenderChatID != -500 {
		t.Fatalf("BanSenderChat calls = %+v, want one for chat -500", bans)
	}
}

func TestChannelPost_AutoForwardExempt(t *testing.T) {
	f := newFixture(nil)
	channel := event.Chat{ID: -500, Type: event.ChatChannel}

	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 1},
		event.Message{ID: 9, Text: "news", SenderChat: &channel, AutoForward: true}))

	if calls := f.fake.Calls(); len(calls) != 0 {
		t.Fatalf("auto-forwarded channel post triggered actions: %+v", calls)
	}
}

func TestPrivateChatExemptFromModeration(t *testing.T) {
	f := newFixture(nil)
	evt := event.Event{
		Kind: event.KindMessage,
		Chat: event.Chat{ID: 7, Type: event.ChatPrivate},
		From: event.User{ID: 2, FirstName: "John pedo Smith", Handle: "johnny"},
		Message: &event.Message{ID: 1, Text: "check my onlyfans"},
	}

	f.eng.HandleEvent(context.Background(), evt)

	if calls := f.fake.Calls(); len(calls) != 0 {
		t.Fatalf("private chat message triggered actions: %+v", calls)
	}
	// The handle is still learned, the private chat is not.
	if _, ok := f.dir.LookupHandle("johnny"); !ok {
		t.Error("handle not observed from private traffic")
	}
	if f.dir.ChatCount() != 0 {
		t.Error("private chat entered the known-chat set")
	}
}

func TestNameFilter_BansWithRevoke(t *testing.T) {
	f := newFixture(nil)
	user := event.User{ID: 3, FirstName: "John", LastName: "pedo Smith"}

	f.eng.HandleEvent(context.Background(), msgEvent(user, event.Message{ID: 5, Text: "hello"}))

	bans := f.fake.CallsTo("BanUser")
	if len(bans) != 1 || bans[0].UserID != 3 || !bans[0].Revoke {
		t.Fatalf("BanUser calls = %+v, want one revoking ban of user 3", bans)
	}
	dels := f.fake.CallsTo("DeleteMessage")
	if len(dels) != 1 || dels[0].MsgID != 5 {
		t.Fatalf("DeleteMessage calls = %+v, want one for msg 5", dels)
	}
}

func TestNameFilter_MembershipEventHasNoMessageDelete(t *testing.T) {
	f := newFixture(nil)

	f.eng.HandleEvent(context.Background(), event.Event{
		Kind: event.KindMembership,
		Chat: group,
		From: event.User{ID: 3, FirstName: "John pedo Smith"},
	})

	if n := len(f.fake.CallsTo("BanUser")); n != 1 {
		t.Fatalf("BanUser called %d times, want 1", n)
	}
	if n := len(f.fake.CallsTo("DeleteMessage")); n != 0 {
		t.Fatalf("DeleteMessage called %d times, want 0", n)
	}
}

func TestJoinLeaveNoticeDeleted(t *testing.T) {
	f := newFixture(nil)

	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 4, FirstName: "Ann"},
		event.Message{ID: 11, JoinNotice: true}))
	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 4, FirstName: "Ann"},
		event.Message{ID: 12, LeaveNotice: true}))

	dels := f.fake.CallsTo("DeleteMessage")
	if len(dels) != 2 {
		t.Fatalf("DeleteMessage called %d times, want 2", len(dels))
	}
	if n := len(f.fake.CallsTo("BanUser")); n != 0 {
		t.Fatalf("join/leave cleanup banned someone: %d ban calls", n)
	}
}

func TestTextFilter_NonAdminBanned(t *testing.T) {
	f := newFixture(adminsStub{})

	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 5, FirstName: "Bob"},
		event.Message{ID: 20, Text: "subscribe to my onlyfans"}))

	bans := f.fake.CallsTo("BanUser")
	if len(bans) != 1 || !bans[0].Revoke {
		t.Fatalf("BanUser calls = %+v, want one with revoke=true", bans)
	}
	if n := len(f.fake.CallsTo("DeleteMessage")); n != 0 {
		t.Fatalf("DeleteMessage called %d times, want 0 (revoke wipes history)", n)
	}
}

func TestTextFilter_AdminGetsDeleteOnly(t *testing.T) {
	f := newFixture(adminsStub{5: true})

	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 5, FirstName: "Bob"},
		event.Message{ID: 20, Caption: "subscribe to my onlyfans"}))

	if n := len(f.fake.CallsTo("BanUser")); n != 0 {
		t.Fatalf("admin was banned for text: %d ban calls", n)
	}
	dels := f.fake.CallsTo("DeleteMessage")
	if len(dels) != 1 || dels[0].MsgID != 20 {
		t.Fatalf("DeleteMessage calls = %+v, want one for msg 20", dels)
	}
}

func TestAdminSpamWindow(t *testing.T) {
	f := newFixture(adminsStub{6: true})
	admin := event.User{ID: 6, FirstName: "Carol"}
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		f.eng.HandleEvent(ctx, msgEvent(admin, event.Message{ID: int64(i), Text: "ping"}))
		f.clock.advance(400 * time.Millisecond)
	}

	bulk := f.fake.CallsTo("DeleteMessages")
	if len(bulk) != 1 {
		t.Fatalf("DeleteMessages called %d times, want 1", len(bulk))
	}
	if len(bulk[0].MsgIDs) != 5 {
		t.Fatalf("bulk delete carried %d ids, want 5: %v", len(bulk[0].MsgIDs), bulk[0].MsgIDs)
	}
	sent := f.fake.CallsTo("SendText")
	if len(sent) != 1 || !sent[0].Formatted {
		t.Fatalf("SendText calls = %+v, want one formatted warning", sent)
	}

	// The window drained on trigger: the next message does not re-trigger.
	f.eng.HandleEvent(ctx, msgEvent(admin, event.Message{ID: 6, Text: "ping"}))
	if n := len(f.fake.CallsTo("DeleteMessages")); n != 1 {
		t.Fatalf("DeleteMessages called %d times after drain, want still 1", n)
	}
	key := window.Key{ChatID: group.ID, UserID: 6, Category: window.CategoryAdminText}
	if n := f.win.Len(key); n != 1 {
		t.Fatalf("admin window holds %d entries, want 1", n)
	}
}

func TestAdminSpamWindow_NeverAppliesToNonAdmins(t *testing.T) {
	f := newFixture(adminsStub{})
	user := event.User{ID: 7, FirstName: "Dave"}
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		f.eng.HandleEvent(ctx, msgEvent(user, event.Message{ID: int64(i), Text: "ping"}))
	}

	if calls := f.fake.Calls(); len(calls) != 0 {
		t.Fatalf("non-admin plain messages triggered actions: %+v", calls)
	}
}

func TestMediaSpamWindow(t *testing.T) {
	f := newFixture(adminsStub{})
	user := event.User{ID: 8, FirstName: "Eve"}
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		f.eng.HandleEvent(ctx, msgEvent(user, event.Message{ID: int64(i), Media: event.MediaSticker}))
		f.clock.advance(10 * time.Second)
	}

	bulk := f.fake.CallsTo("DeleteMessages")
	if len(bulk) != 1 {
		t.Fatalf("DeleteMessages called %d times, want 1", len(bulk))
	}
	if len(bulk[0].MsgIDs) != 20 {
		t.Fatalf("bulk delete carried %d ids, want 20", len(bulk[0].MsgIDs))
	}
	sent := f.fake.CallsTo("SendText")
	if len(sent) != 1 || sent[0].Formatted {
		t.Fatalf("SendText calls = %+v, want one plain warning", sent)
	}
}

func TestAdminStickerBurst_BothWindowsFire(t *testing.T) {
	f := newFixture(adminsStub{9: true})
	admin := event.User{ID: 9, FirstName: "Frank"}
	ctx := context.Background()

	// 15 stickers spread out: media window accumulates, admin window decays.
	for i := 1; i <= 15; i++ {
		f.eng.HandleEvent(ctx, msgEvent(admin, event.Message{ID: int64(i), Media: event.MediaAnimation}))
		f.clock.advance(10 * time.Second)
	}
	// 5 more in a tight burst: the 20th sticker crosses both thresholds.
	for i := 16; i <= 20; i++ {
		f.eng.HandleEvent(ctx, msgEvent(admin, event.Message{ID: int64(i), Media: event.MediaAnimation}))
		f.clock.advance(500 * time.Millisecond)
	}

	bulk := f.fake.CallsTo("DeleteMessages")
	if len(bulk) != 2 {
		t.Fatalf("DeleteMessages called %d times, want 2 (both windows)", len(bulk))
	}
	if len(bulk[0].MsgIDs) != 5 {
		t.Errorf("admin window purge carried %d ids, want 5", len(bulk[0].MsgIDs))
	}
	if len(bulk[1].MsgIDs) != 20 {
		t.Errorf("media window purge carried %d ids, want 20", len(bulk[1].MsgIDs))
	}
	if n := len(f.fake.CallsTo("SendText")); n != 2 {
		t.Errorf("SendText called %d times, want 2", n)
	}
}

func TestObserveHappensBeforeRules(t *testing.T) {
	f := newFixture(nil)

	// Even a message that is immediately deleted feeds the directory.
	f.eng.HandleEvent(context.Background(), msgEvent(
		event.User{ID: 10, Handle: "Ghost", FirstName: "Ann"},
		event.Message{ID: 30, JoinNotice: true}))

	if id, ok := f.dir.LookupHandle("ghost"); !ok || id != 10 {
		t.Errorf("LookupHandle(ghost) = (%d, %v), want (10, true)", id, ok)
	}
	if f.dir.ChatCount() != 1 {
		t.Errorf("ChatCount() = %d, want 1", f.dir.ChatCount())
	}
}

func TestActionFailuresSwallowed(t *testing.T) {
	f := newFixture(nil)
	f.fake.Fail("DeleteMessage", errors.New("no rights"))
	f.fake.Fail("BanUser", errors.New("no rights"))

	// Neither failure may panic or propagate.
	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 3, FirstName: "John pedo Smith"},
		event.Message{ID: 5, Text: "hi"}))
	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 4, FirstName: "Ann"},
		event.Message{ID: 6, JoinNotice: true}))
}

type sink struct {
	mu      sync.Mutex
	audits  []string
	ledgers []string
}

func (s *sink) Record(_ context.Context, _, _ int64, action, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, action+": "+reason)
	return nil
}

func (s *sink) RecordBan(_ context.Context, _, _ int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers = append(s.ledgers, reason)
	return nil
}

func TestAutomaticBansRecorded(t *testing.T) {
	f := newFixture(adminsStub{})
	rec := &sink{}
	f.eng.audit = rec
	f.eng.ledger = rec

	f.eng.HandleEvent(context.Background(), msgEvent(event.User{ID: 5, FirstName: "Bob"},
		event.Message{ID: 20, Text: "free xxx links"}))

	if len(rec.audits) != 1 || len(rec.ledgers) != 1 {
		t.Fatalf("audit=%v ledger=%v, want one entry each", rec.audits, rec.ledgers)
	}
}
