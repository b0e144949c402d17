// Package gateway provides a fake platform gateway for load testing the
// moderation engine over NATS. It serves the action request/reply subject the
// engine calls, answering every request with success and recording what was
// asked, and publishes synthetic platform events for the engine to consume.
//
// The wire structs are local equivalents of the engine's event and action
// payloads.
package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects shared with the moderation engine.
const (
	SubjectEvents  = "platform.events"
	SubjectActions = "platform.actions"
)

// ---------------------------------------------------------------------------
// Event wire types (local equivalents of internal/event)
// ---------------------------------------------------------------------------

type User struct {
	ID        int64  `json:"id"`
	Handle    string `json:"handle,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Message struct {
	ID      int64  `json:"id"`
	Text    string `json:"text,omitempty"`
	Caption string `json:"caption,omitempty"`
	Media   string `json:"media,omitempty"`
}

type Event struct {
	Kind    string   `json:"kind"`
	Chat    Chat     `json:"chat"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
}

// TextMessage builds a plain group text message event.
func TextMessage(chatID, userID, msgID int64, text string) Event {
	return Event{
		Kind: "message",
		Chat: Chat{ID: chatID, Type: "supergroup"},
		From: User{ID: userID, FirstName: fmt.Sprintf("load-%d", userID)},
		Message: &Message{ID: msgID, Text: text},
	}
}

// StickerMessage builds a group sticker message event.
func StickerMessage(chatID, userID, msgID int64) Event {
	return Event{
		Kind: "message",
		Chat: Chat{ID: chatID, Type: "supergroup"},
		From: User{ID: userID, FirstName: fmt.Sprintf("load-%d", userID)},
		Message: &Message{ID: msgID, Media: "sticker"},
	}
}

// PublishEvent publishes one event on the engine's event subject.
func PublishEvent(nc *nats.Conn, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("gateway: marshal event: %w", err)
	}
	return nc.Publish(SubjectEvents, data)
}

// ---------------------------------------------------------------------------
// Action side
// ---------------------------------------------------------------------------

type actionRequest struct {
	Op     string  `json:"op"`
	ChatID int64   `json:"chat_id"`
	UserID int64   `json:"user_id"`
	MsgID  int64   `json:"msg_id"`
	MsgIDs []int64 `json:"msg_ids"`
	Handle string  `json:"handle"`
}

type actionReply struct {
	OK     bool   `json:"ok"`
	Role   string `json:"role,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

// Action is one recorded action call, stamped when the request arrived.
type Action struct {
	Op     string
	ChatID int64
	UserID int64
	MsgIDs []int64
	At     time.Time
}

// Options configures the fake gateway.
type Options struct {
	// RoleFor decides the role returned for get_role requests. Nil means
	// every user is a plain "member".
	RoleFor func(chatID, userID int64) string

	// Buffer is the capacity of the Actions channel. Actions arriving while
	// the channel is full are counted but dropped. Defaults to 4096.
	Buffer int
}

// Gateway is the fake platform side of the action RPC subject.
type Gateway struct {
	sub     *nats.Subscription
	roleFor func(chatID, userID int64) string

	mu      sync.Mutex
	counts  map[string]int
	dropped int

	ch chan Action
}

// New subscribes on the action subject and starts answering requests.
func New(nc *nats.Conn, opts Options) (*Gateway, error) {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 4096
	}
	g := &Gateway{
		roleFor: opts.RoleFor,
		counts:  make(map[string]int),
		ch:      make(chan Action, buffer),
	}

	sub, err := nc.Subscribe(SubjectActions, g.handle)
	if err != nil {
		return nil, fmt.Errorf("gateway: subscribe %s: %w", SubjectActions, err)
	}
	g.sub = sub
	return g, nil
}

func (g *Gateway) handle(msg *nats.Msg) {
	var req actionRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return
	}

	act := Action{Op: req.Op, ChatID: req.ChatID, UserID: req.UserID, MsgIDs: req.MsgIDs, At: time.Now()}

	g.mu.Lock()
	g.counts[req.Op]++
	g.mu.Unlock()

	select {
	case g.ch <- act:
	default:
		g.mu.Lock()
		g.dropped++
		g.mu.Unlock()
	}

	reply := actionReply{OK: true}
	switch req.Op {
	case "get_role":
		reply.Role = "member"
		if g.roleFor != nil {
			reply.Role = g.roleFor(req.ChatID, req.UserID)
		}
	case "resolve_chat":
		reply.ChatID = req.ChatID
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	msg.Respond(data)
}

// Actions returns the channel of recorded actions, in arrival order.
func (g *Gateway) Actions() <-chan Action {
	return g.ch
}

// Counts returns a copy of the per-op action counts.
func (g *Gateway) Counts() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.counts))
	for op, n := range g.counts {
		out[op] = n
	}
	return out
}

// Dropped returns the number of actions that did not fit the channel buffer.
func (g *Gateway) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

// Close stops serving the action subject.
func (g *Gateway) Close() {
	if g.sub != nil {
		g.sub.Unsubscribe()
	}
}
