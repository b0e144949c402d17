// Package engine implements the moderation decision engine: the per-event
// rule cascade that turns observed messages and membership changes into
// delete, ban, and restrict actions.
//
// Rules 1-5 short-circuit: the first rule that issues an action terminates
// handling. The two spam windows (admin text, media) are independent and may
// both fire for the same message. Failures of automatic moderation actions
// are logged and swallowed; a failed action never aborts the event stream.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/whisper/modengine/internal/directory"
	"github.com/whisper/modengine/internal/event"
	"github.com/whisper/modengine/internal/filter"
	"github.com/whisper/modengine/internal/metrics"
	"github.com/whisper/modengine/internal/platform"
	"github.com/whisper/modengine/internal/window"
)

// Spam thresholds. Process-wide policy, not per-chat configuration.
const (
	AdminSpamLimit  = 5
	AdminSpamWindow = 3 * time.Second

	MediaSpamLimit  = 20
	MediaSpamWindow = 30 * time.Minute
)

// Auditor is the optional sink for the append-only moderation action log.
// Implemented by audit.Store.
type Auditor interface {
	Record(ctx context.Context, chatID, userID int64, action, reason string) error
}

// Ledger is the optional write-through ban ledger other platform services
// consult for enforcement. Implemented by ban.Store. The engine only writes
// it; decisions never read it.
type Ledger interface {
	RecordBan(ctx context.Context, chatID, userID int64, reason string) error
}

// AdminChecker reports whether a user is an admin or owner of a chat.
// Implemented by admin.Classifier.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) bool
}

// Config carries the engine's collaborators. Actions, Filter, Windows,
// Directory and Admins are required; Audit and Ledger may be nil.
type Config struct {
	Actions   platform.Actions
	Filter    *filter.Filter
	Windows   *window.Store
	Directory *directory.Directory
	Admins    AdminChecker
	Audit     Auditor
	Ledger    Ledger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Engine is the event-handling state machine. Construct with New; safe for
// concurrent use, one goroutine per event.
type Engine struct {
	actions   platform.Actions
	filter    *filter.Filter
	windows   *window.Store
	directory *directory.Directory
	admins    AdminChecker
	audit     Auditor
	ledger    Ledger
	now       func() time.Time
}

// New returns an Engine wired to the given collaborators.
func New(cfg Config) *Engine {
	e := &Engine{
		actions:   cfg.Actions,
		filter:    cfg.Filter,
		windows:   cfg.Windows,
		directory: cfg.Directory,
		admins:    cfg.Admins,
		audit:     cfg.Audit,
		ledger:    cfg.Ledger,
		now:       cfg.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// HandleEvent runs the rule cascade for one event. It never returns an
// error and never panics: rule execution is recovered at this boundary so
// one bad event cannot terminate the stream.
func (e *Engine) HandleEvent(ctx context.Context, evt event.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] recovered from panic handling event chat=%d user=%d: %v",
				evt.Chat.ID, evt.From.ID, r)
		}
	}()

	start := time.Now()
	defer func() {
		metrics.EventLatency.Observe(time.Since(start).Seconds())
	}()

	// Directory observation happens before any rule, unconditionally,
	// including for events whose message is about to be deleted.
	e.directory.Observe(evt.Chat, evt.From)

	switch evt.Kind {
	case event.KindMembership:
		metrics.EventsTotal.WithLabelValues("membership").Inc()
		e.handleMembership(ctx, evt)
	case event.KindMessage:
		metrics.EventsTotal.WithLabelValues("message").Inc()
		e.handleMessage(ctx, evt)
	default:
		metrics.EventsTotal.WithLabelValues("invalid").Inc()
	}
}

// handleMembership applies the identity filter to membership changes: a
// joining or updated member whose display name matches the profanity list
// is banned with history revocation. There is no message to delete.
func (e *Engine) handleMembership(ctx context.Context, evt event.Event) {
	e.banForName(ctx, evt.Chat, evt.From)
}

// banForName bans the user when their display name matches the filter.
// Reports whether the rule matched (not whether the ban succeeded).
// Display names are never grounds for a ban in private conversations.
func (e *Engine) banForName(ctx context.Context, chat event.Chat, user event.User) bool {
	if chat.IsPrivate() {
		return false
	}
	phrase := e.filter.Match(user.DisplayName())
	if phrase == "" {
		return false
	}

	metrics.RuleTriggersTotal.WithLabelValues("name_filter").Inc()
	log.Printf("[engine] banning user=%d chat=%d for display name match %q", user.ID, chat.ID, phrase)
	e.try("ban for name", e.actions.BanUser(ctx, chat.ID, user.ID, true))
	e.recordBan(ctx, chat.ID, user.ID, "ban", "display name: "+phrase)
	return true
}

func (e *Engine) handleMessage(ctx context.Context, evt event.Event) {
	msg := evt.Message
	if msg == nil {
		return
	}
	chat := evt.Chat
	user := evt.From

	// Rule 1: a channel posting into the group under its own identity is
	// deleted and banned, unless the post is an automatic forward from the
	// chat's linked channel.
	if msg.SenderChat != nil && msg.SenderChat.Type == event.ChatChannel && !msg.AutoForward {
		metrics.RuleTriggersTotal.WithLabelValues("channel_post_ban").Inc()
		e.try("delete channel post", e.actions.DeleteMessage(ctx, chat.ID, msg.ID))
		e.try("ban sender chat", e.actions.BanSenderChat(ctx, chat.ID, msg.SenderChat.ID))
		e.recordAudit(ctx, chat.ID, msg.SenderChat.ID, "channel_ban", "direct channel post")
		return
	}

	// Rule 2: moderation is group-only.
	if chat.IsPrivate() {
		return
	}

	// Rule 3: identity filter on the author's display name.
	if e.banForName(ctx, chat, user) {
		e.try("delete message of banned name", e.actions.DeleteMessage(ctx, chat.ID, msg.ID))
		return
	}

	// Rule 4: join/leave service notices are removed.
	if msg.JoinNotice || msg.LeaveNotice {
		metrics.RuleTriggersTotal.WithLabelValues("join_leave_cleanup").Inc()
		e.try("delete join/leave notice", e.actions.DeleteMessage(ctx, chat.ID, msg.ID))
		return
	}

	isAdmin := e.admins.IsAdmin(ctx, chat.ID, user.ID)

	// Rule 5: content filter on text/caption. Admins lose only the
	// offending message; everyone else is banned with history revocation.
	if phrase := e.filter.Match(msg.Body()); phrase != "" {
		if isAdmin {
			metrics.RuleTriggersTotal.WithLabelValues("text_filter_delete").Inc()
			e.try("delete admin profanity", e.actions.DeleteMessage(ctx, chat.ID, msg.ID))
		} else {
			metrics.RuleTriggersTotal.WithLabelValues("text_filter_ban").Inc()
			log.Printf("[engine] banning user=%d chat=%d for text match %q", user.ID, chat.ID, phrase)
			e.try("ban for text", e.actions.BanUser(ctx, chat.ID, user.ID, true))
			e.recordBan(ctx, chat.ID, user.ID, "ban", "message text: "+phrase)
		}
		return
	}

	now := e.now()

	// Rule 6: admin flood window. Admins bypass most rules, so their plain
	// messages get their own rate window.
	if isAdmin {
		key := window.Key{ChatID: chat.ID, UserID: user.ID, Category: window.CategoryAdminText}
		if triggered, ids := e.windows.RecordAndCheck(key, now, msg.ID, AdminSpamLimit, AdminSpamWindow); triggered {
			metrics.RuleTriggersTotal.WithLabelValues("admin_spam").Inc()
			e.try("bulk-delete admin spam", e.actions.DeleteMessages(ctx, chat.ID, ids))
			warning := fmt.Sprintf("🛡️ *%s, as a guardian of this realm, your voice carries weight.*\n_Please preserve the tranquility and refrain from flooding the chat._", user.FirstName)
			e.try("send admin spam warning", e.actions.SendText(ctx, chat.ID, warning, true))
			e.recordAudit(ctx, chat.ID, user.ID, "purge", fmt.Sprintf("admin flood, %d messages", len(ids)))
		}
	}

	// Rule 7: media flood window, independent of rule 6.
	if msg.Media == event.MediaSticker || msg.Media == event.MediaAnimation {
		key := window.Key{ChatID: chat.ID, UserID: user.ID, Category: window.CategoryMedia}
		if triggered, ids := e.windows.RecordAndCheck(key, now, msg.ID, MediaSpamLimit, MediaSpamWindow); triggered {
			metrics.RuleTriggersTotal.WithLabelValues("media_spam").Inc()
			e.try("bulk-delete media spam", e.actions.DeleteMessages(ctx, chat.ID, ids))
			warning := fmt.Sprintf("⚠️ %s, you have sent too many stickers/GIFs. They have been removed to prevent spam.", user.FirstName)
			e.try("send media spam warning", e.actions.SendText(ctx, chat.ID, warning, false))
			e.recordAudit(ctx, chat.ID, user.ID, "purge", fmt.Sprintf("media flood, %d messages", len(ids)))
		}
	}
}

// try logs and swallows an automatic moderation action failure.
func (e *Engine) try(what string, err error) {
	if err != nil {
		log.Printf("[engine] %s failed: %v", what, err)
	}
}

// recordAudit writes to the audit log when one is configured. Best effort.
func (e *Engine) recordAudit(ctx context.Context, chatID, userID int64, action, reason string) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, chatID, userID, action, reason); err != nil {
		log.Printf("[engine] audit record failed: %v", err)
	}
}

// recordBan writes both the audit record and the ban ledger entry for an
// automatic ban. Best effort.
func (e *Engine) recordBan(ctx context.Context, chatID, userID int64, action, reason string) {
	e.recordAudit(ctx, chatID, userID, action, reason)
	if e.ledger == nil {
		return
	}
	if err := e.ledger.RecordBan(ctx, chatID, userID, reason); err != nil {
		log.Printf("[engine] ban ledger write failed: %v", err)
	}
}
