// Package command implements the synchronous moderation command surface:
// parsing slash commands out of message events, resolving their target user
// and scope chat, checking the caller's privilege, and executing the action.
//
// Commands are routed through a registry dispatcher keyed by command name,
// mirroring the typed-message dispatcher of the Whisper websocket server.
// Unknown commands are ignored so the engine coexists with other bots.
package command

import (
	"context"
	"log"
	"strings"

	"github.com/whisper/modengine/internal/event"
	"github.com/whisper/modengine/internal/metrics"
)

// Invocation is one parsed command: the origin chat and caller, the raw
// message (carrying the reply target, when any), and the positional
// arguments. It is transient, owned by the handling call.
type Invocation struct {
	Chat    event.Chat
	From    event.User
	Message *event.Message
	Name    string
	Args    []string
}

// Parse extracts a command invocation from a message event. It reports
// false for events that are not slash commands. A "@botname" suffix on the
// command is dropped, so "/ban@modbot" routes the same as "/ban".
func Parse(evt event.Event) (*Invocation, bool) {
	if evt.Kind != event.KindMessage || evt.Message == nil {
		return nil, false
	}
	text := evt.Message.Text
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] == "/" {
		return nil, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return &Invocation{
		Chat:    evt.Chat,
		From:    evt.From,
		Message: evt.Message,
		Name:    strings.ToLower(name),
		Args:    fields[1:],
	}, true
}

// HandlerFunc handles one command invocation.
type HandlerFunc func(ctx context.Context, inv *Invocation)

// Router routes parsed invocations to registered handlers by command name.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register associates a handler with a command name. An already-registered
// name is silently replaced.
func (r *Router) Register(name string, handler HandlerFunc) {
	r.handlers[strings.ToLower(name)] = handler
}

// Dispatch routes an invocation to its handler. Unregistered commands are
// logged at most and dropped.
func (r *Router) Dispatch(ctx context.Context, inv *Invocation) {
	handler, ok := r.handlers[inv.Name]
	if !ok {
		return
	}
	metrics.EventsTotal.WithLabelValues("command").Inc()
	log.Printf("[command] /%s from user=%d chat=%d", inv.Name, inv.From.ID, inv.Chat.ID)
	handler(ctx, inv)
}
