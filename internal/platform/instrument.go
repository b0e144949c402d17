package platform

import (
	"context"
	"time"

	"github.com/whisper/modengine/internal/metrics"
)

// DefaultActionTimeout bounds a single action RPC when the caller's
// context carries no deadline of its own.
const DefaultActionTimeout = 10 * time.Second

// Instrumented wraps an Actions implementation with per-action metrics
// and a fallback timeout. Every call is counted by action name and
// outcome, and runs under a deadline even when the caller passed a
// background context.
type Instrumented struct {
	inner   Actions
	timeout time.Duration
}

// NewInstrumented wraps inner. A non-positive timeout falls back to
// DefaultActionTimeout.
func NewInstrumented(inner Actions, timeout time.Duration) *Instrumented {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return &Instrumented{inner: inner, timeout: timeout}
}

// observe runs fn with a bounded context and records the outcome.
func (i *Instrumented) observe(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ActionsTotal.WithLabelValues(action, outcome).Inc()
	return err
}

func (i *Instrumented) DeleteMessage(ctx context.Context, chatID, msgID int64) error {
	return i.observe(ctx, "delete_message", func(ctx context.Context) error {
		return i.inner.DeleteMessage(ctx, chatID, msgID)
	})
}

func (i *Instrumented) DeleteMessages(ctx context.Context, chatID int64, msgIDs []int64) error {
	return i.observe(ctx, "delete_messages", func(ctx context.Context) error {
		return i.inner.DeleteMessages(ctx, chatID, msgIDs)
	})
}

func (i *Instrumented) BanUser(ctx context.Context, chatID, userID int64, revokeHistory bool) error {
	return i.observe(ctx, "ban_user", func(ctx context.Context) error {
		return i.inner.BanUser(ctx, chatID, userID, revokeHistory)
	})
}

func (i *Instrumented) BanSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	return i.observe(ctx, "ban_sender_chat", func(ctx context.Context) error {
		return i.inner.BanSenderChat(ctx, chatID, senderChatID)
	})
}

func (i *Instrumented) UnbanUser(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error {
	return i.observe(ctx, "unban_user", func(ctx context.Context) error {
		return i.inner.UnbanUser(ctx, chatID, userID, onlyIfBanned)
	})
}

func (i *Instrumented) RestrictUser(ctx context.Context, chatID, userID int64, perms Permissions) error {
	return i.observe(ctx, "restrict_user", func(ctx context.Context) error {
		return i.inner.RestrictUser(ctx, chatID, userID, perms)
	})
}

func (i *Instrumented) SendText(ctx context.Context, chatID int64, text string, formatted bool) error {
	return i.observe(ctx, "send_text", func(ctx context.Context) error {
		return i.inner.SendText(ctx, chatID, text, formatted)
	})
}

func (i *Instrumented) GetRole(ctx context.Context, chatID, userID int64) (Role, error) {
	var role Role
	err := i.observe(ctx, "get_role", func(ctx context.Context) error {
		var err error
		role, err = i.inner.GetRole(ctx, chatID, userID)
		return err
	})
	return role, err
}

func (i *Instrumented) ResolveChatHandle(ctx context.Context, handle string) (int64, error) {
	var id int64
	err := i.observe(ctx, "resolve_chat", func(ctx context.Context) error {
		var err error
		id, err = i.inner.ResolveChatHandle(ctx, handle)
		return err
	})
	return id, err
}

var _ Actions = (*Instrumented)(nil)
