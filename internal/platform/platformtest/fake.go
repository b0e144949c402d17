// Package platformtest provides a recording in-memory implementation of
// platform.Actions for tests. Every call is appended to Calls; individual
// methods can be made to fail to exercise the swallow-vs-surface paths.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/whisper/modengine/internal/platform"
)

// Call records one invocation of a Fake method. Only the fields relevant to
// the method are set.
type Call struct {
	Method       string
	ChatID       int64
	UserID       int64
	MsgID        int64
	MsgIDs       []int64
	SenderChatID int64
	Revoke       bool
	OnlyIfBanned bool
	Perms        platform.Permissions
	Text         string
	Formatted    bool
	Handle       string
}

type roleKey struct {
	chatID int64
	userID int64
}

// Fake implements platform.Actions. The zero value is not usable; construct
// with NewFake. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	roles   map[roleKey]platform.Role
	chats   map[string]int64
	failers map[string]func(Call) error
}

// NewFake returns an empty Fake where every call succeeds and every role
// lookup reports a plain member.
func NewFake() *Fake {
	return &Fake{
		roles:   make(map[roleKey]platform.Role),
		chats:   make(map[string]int64),
		failers: make(map[string]func(Call) error),
	}
}

// SetRole fixes the role returned by GetRole for (chatID, userID).
func (f *Fake) SetRole(chatID, userID int64, role platform.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[roleKey{chatID, userID}] = role
}

// SetChatHandle makes ResolveChatHandle resolve handle to chatID.
func (f *Fake) SetChatHandle(handle string, chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[handle] = chatID
}

// Fail makes every call to method return err.
func (f *Fake) Fail(method string, err error) {
	f.FailFunc(method, func(Call) error { return err })
}

// FailFunc makes calls to method return whatever fn decides, per call.
func (f *Fake) FailFunc(method string, fn func(Call) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failers[method] = fn
}

// Calls returns a copy of every recorded call, in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls to one method, in order.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// SentTexts returns the Text of every SendText call, in order.
func (f *Fake) SentTexts() []string {
	var out []string
	for _, c := range f.CallsTo("SendText") {
		out = append(out, c.Text)
	}
	return out
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	fn := f.failers[c.Method]
	f.mu.Unlock()
	if fn != nil {
		return fn(c)
	}
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, chatID, msgID int64) error {
	return f.record(Call{Method: "DeleteMessage", ChatID: chatID, MsgID: msgID})
}

func (f *Fake) DeleteMessages(_ context.Context, chatID int64, msgIDs []int64) error {
	ids := make([]int64, len(msgIDs))
	copy(ids, msgIDs)
	return f.record(Call{Method: "DeleteMessages", ChatID: chatID, MsgIDs: ids})
}

func (f *Fake) BanUser(_ context.Context, chatID, userID int64, revokeHistory bool) error {
	return f.record(Call{Method: "BanUser", ChatID: chatID, UserID: userID, Revoke: revokeHistory})
}

func (f *Fake) BanSenderChat(_ context.Context, chatID, senderChatID int64) error {
	return f.record(Call{Method: "BanSenderChat", ChatID: chatID, SenderChatID: senderChatID})
}

func (f *Fake) UnbanUser(_ context.Context, chatID, userID int64, onlyIfBanned bool) error {
	return f.record(Call{Method: "UnbanUser", ChatID: chatID, UserID: userID, OnlyIfBanned: onlyIfBanned})
}

func (f *Fake) RestrictUser(_ context.Context, chatID, userID int64, perms platform.Permissions) error {
	return f.record(Call{Method: "RestrictUser", ChatID: chatID, UserID: userID, Perms: perms})
}

func (f *Fake) SendText(_ context.Context, chatID int64, text string, formatted bool) error {
	return f.record(Call{Method: "SendText", ChatID: chatID, Text: text, Formatted: formatted})
}

func (f *Fake) GetRole(_ context.Context, chatID, userID int64) (platform.Role, error) {
	if err := f.record(Call{Method: "GetRole", ChatID: chatID, UserID: userID}); err != nil {
		return platform.RoleUnknown, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleKey{chatID, userID}]
	if !ok {
		return platform.RoleMember, nil
	}
	return role, nil
}

func (f *Fake) ResolveChatHandle(_ context.Context, handle string) (int64, error) {
	if err := f.record(Call{Method: "ResolveChatHandle", Handle: handle}); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.chats[handle]
	if !ok {
		return 0, fmt.Errorf("platformtest: unknown chat handle %q", handle)
	}
	return id, nil
}

var _ platform.Actions = (*Fake)(nil)
