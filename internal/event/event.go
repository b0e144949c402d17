// Package event defines the moderation event model: the payloads delivered
// by the platform transport for every message and membership change the
// engine observes. Events are JSON-encoded on the wire (NATS subjects), in
// the same style as the chat events exchanged between Whisper services.
package event

// Kind discriminates the event union.
type Kind string

const (
	KindMembership Kind = "membership"
	KindMessage    Kind = "message"
)

// ChatType is the platform's classification of a chat.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// MediaKind tags the media attached to a message, limited to the kinds the
// media-spam rule cares about.
type MediaKind string

const (
	MediaNone      MediaKind = ""
	MediaSticker   MediaKind = "sticker"
	MediaAnimation MediaKind = "animation"
)

// User identifies a platform user.
type User struct {
	ID        int64  `json:"id"`
	Handle    string `json:"handle,omitempty"` // public @name, without the "@"
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns the user's full display name, the string the identity
// filter inspects.
func (u User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Chat identifies the chat an event happened in.
type Chat struct {
	ID   int64    `json:"id"`
	Type ChatType `json:"type"`
}

// IsPrivate reports whether the chat is a one-on-one conversation.
func (c Chat) IsPrivate() bool { return c.Type == ChatPrivate }

// Message carries the message-specific fields of a message event.
type Message struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text,omitempty"`
	Caption string    `json:"caption,omitempty"`
	Media   MediaKind `json:"media,omitempty"`

	// SenderChat is set when the message was authored by a chat identity
	// (typically a channel) rather than a user.
	SenderChat *Chat `json:"sender_chat,omitempty"`

	// AutoForward marks posts automatically forwarded from a linked channel.
	AutoForward bool `json:"auto_forward,omitempty"`

	// JoinNotice / LeaveNotice mark the service messages the platform emits
	// when members enter or leave.
	JoinNotice  bool `json:"join_notice,omitempty"`
	LeaveNotice bool `json:"leave_notice,omitempty"`

	// ReplyTo is the author of the message this one replies to, when any.
	ReplyTo *User `json:"reply_to,omitempty"`
}

// Body returns the text the content filter inspects: the message text, or
// the caption when there is no text.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Event is the tagged union delivered by the transport. Chat and From are
// always set; Message is set only for KindMessage.
type Event struct {
	Kind    Kind     `json:"kind"`
	Chat    Chat     `json:"chat"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
}
