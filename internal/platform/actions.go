// Package platform defines the abstract chat-platform client used by the
// moderation engine to execute actions. The engine never talks to the chat
// platform directly; it issues delete/ban/restrict/send calls through the
// Actions interface and treats every failure as non-fatal.
package platform

import "context"

// Role is a user's standing within a chat as reported by the platform.
type Role string

const (
	RoleMember  Role = "member"
	RoleAdmin   Role = "administrator"
	RoleOwner   Role = "creator"
	RoleLeft    Role = "left"
	RoleBanned  Role = "kicked"
	RoleUnknown Role = ""
)

// Permissions describes what a restricted user is still allowed to do.
// The zero value removes every permission (a full mute).
type Permissions struct {
	CanSendMessages    bool `json:"can_send_messages"`
	CanSendMedia       bool `json:"can_send_media"`
	CanSendPolls       bool `json:"can_send_polls"`
	CanSendOther       bool `json:"can_send_other"`
	CanAddLinkPreviews bool `json:"can_add_link_previews"`
}

// AllPermissions returns a Permissions value with everything enabled,
// used to lift a restriction.
func AllPermissions() Permissions {
	return Permissions{
		CanSendMessages:    true,
		CanSendMedia:       true,
		CanSendPolls:       true,
		CanSendOther:       true,
		CanAddLinkPreviews: true,
	}
}

// Actions is the set of moderation calls the engine can issue against the
// chat platform. Implementations must honor the context deadline; every
// method may fail with a transport or permission error, and callers decide
// per call site whether to swallow or surface it.
type Actions interface {
	// DeleteMessage removes a single message from a chat.
	DeleteMessage(ctx context.Context, chatID, msgID int64) error

	// DeleteMessages removes a batch of messages from a chat in one call.
	DeleteMessages(ctx context.Context, chatID int64, msgIDs []int64) error

	// BanUser bans a user from a chat. When revokeHistory is true the
	// platform also deletes every message the user has sent in that chat.
	BanUser(ctx context.Context, chatID, userID int64, revokeHistory bool) error

	// BanSenderChat bans a channel identity from posting into a chat.
	BanSenderChat(ctx context.Context, chatID, senderChatID int64) error

	// UnbanUser lifts a ban. With onlyIfBanned the call is a no-op when the
	// user is not currently banned, instead of kicking them.
	UnbanUser(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error

	// RestrictUser applies the given permission set to a user.
	RestrictUser(ctx context.Context, chatID, userID int64, perms Permissions) error

	// SendText posts a text message into a chat. When formatted is true the
	// text carries platform markup.
	SendText(ctx context.Context, chatID int64, text string, formatted bool) error

	// GetRole reports a user's role within a chat.
	GetRole(ctx context.Context, chatID, userID int64) (Role, error)

	// ResolveChatHandle resolves a public chat handle (without the leading
	// "@") to its numeric chat ID.
	ResolveChatHandle(ctx context.Context, handle string) (int64, error)
}
