package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNeedTarget is returned when no target user can be resolved from a
// command invocation.
var ErrNeedTarget = errors.New("command: no target user resolved")

// ErrNeedChatLink is returned when a command typed in a private conversation
// carries no resolvable chat link.
var ErrNeedChatLink = errors.New("command: no scope chat resolved")

// User-facing prompts for the two resolution failures.
const (
	promptNeedTarget   = "❌ You must reply to a user's message or provide their @username/ID."
	promptNeedChatLink = "❌ When using this command in DMs, please provide a group link like t.me/GroupLink."
)

// Target is a resolved target user: the numeric ID plus the label used in
// reply texts ("ID:123", "@handle", or the first name of a replied author).
type Target struct {
	ID    int64
	Label string
}

// ResolveTarget determines who a command acts on, in priority order:
// the author of the replied-to message always wins; otherwise the first
// positional argument that is a bare numeric ID or an @handle known to the
// directory. Link-shaped tokens and handles the directory cannot resolve
// are skipped, not errors.
func (c *Commands) ResolveTarget(inv *Invocation) (Target, error) {
	if inv.Message != nil && inv.Message.ReplyTo != nil {
		author := inv.Message.ReplyTo
		return Target{ID: author.ID, Label: author.FirstName}, nil
	}

	for _, arg := range inv.Args {
		if isLinkToken(arg) {
			continue
		}
		if strings.HasPrefix(arg, "@") {
			if id, ok := c.directory.LookupHandle(arg); ok {
				return Target{ID: id, Label: arg}, nil
			}
			continue
		}
		if id, ok := parseNumericID(arg); ok {
			return Target{ID: id, Label: "ID:" + arg}, nil
		}
	}

	return Target{}, ErrNeedTarget
}

// ResolveScope determines which chat a command acts on. Inside a group the
// scope is that group. In a private conversation the arguments are scanned
// for a chat link or handle, resolved through the platform; an @handle that
// resolves to a known user is presumed to be the target, not the scope,
// when it is the only argument.
func (c *Commands) ResolveScope(ctx context.Context, inv *Invocation) (int64, error) {
	if !inv.Chat.IsPrivate() {
		return inv.Chat.ID, nil
	}

	for _, arg := range inv.Args {
		if !isLinkToken(arg) && !strings.HasPrefix(arg, "@") {
			continue
		}
		if strings.HasPrefix(arg, "@") && len(inv.Args) == 1 {
			if _, ok := c.directory.LookupHandle(arg); ok {
				continue
			}
		}
		if id, err := c.chatFromLink(ctx, arg); err == nil {
			return id, nil
		}
	}

	return 0, ErrNeedChatLink
}

// chatFromLink resolves a t.me link, URL, or @handle to a chat ID through
// the platform client.
func (c *Commands) chatFromLink(ctx context.Context, link string) (int64, error) {
	// Strip link forms down to the trailing handle segment.
	if i := strings.LastIndexByte(link, '/'); i >= 0 {
		link = link[i+1:]
	}
	handle := strings.TrimPrefix(link, "@")
	if handle == "" {
		return 0, fmt.Errorf("command: empty chat handle in %q", link)
	}
	return c.actions.ResolveChatHandle(ctx, handle)
}

// isLinkToken reports whether a positional argument looks like a chat link
// rather than a target user.
func isLinkToken(arg string) bool {
	return strings.HasPrefix(arg, "http") ||
		strings.HasPrefix(arg, "t.me/") ||
		strings.Contains(arg, "://")
}

// parseNumericID parses a bare (possibly negative) decimal ID.
func parseNumericID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
