package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/whisper/modengine/internal/messaging"
)

// actionRequest is the JSON payload of one action RPC to the gateway.
// Op selects the operation; the remaining fields are op-specific.
type actionRequest struct {
	Op           string       `json:"op"`
	ChatID       int64        `json:"chat_id,omitempty"`
	UserID       int64        `json:"user_id,omitempty"`
	MsgID        int64        `json:"msg_id,omitempty"`
	MsgIDs       []int64      `json:"msg_ids,omitempty"`
	SenderChatID int64        `json:"sender_chat_id,omitempty"`
	Revoke       bool         `json:"revoke,omitempty"`
	OnlyIfBanned bool         `json:"only_if_banned,omitempty"`
	Perms        *Permissions `json:"perms,omitempty"`
	Text         string       `json:"text,omitempty"`
	Formatted    bool         `json:"formatted,omitempty"`
	Handle       string       `json:"handle,omitempty"`
}

// actionReply is the gateway's response. A rejected action carries the
// platform's error text; Role and ChatID are set for the lookup ops.
type actionReply struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Role   Role   `json:"role,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

// NATSActions implements Actions as request/reply RPCs to the platform
// gateway over NATS. Construct with NewNATSActions.
type NATSActions struct {
	client *messaging.Client
}

// NewNATSActions returns an Actions implementation backed by the given
// messaging client.
func NewNATSActions(client *messaging.Client) *NATSActions {
	return &NATSActions{client: client}
}

// do performs one RPC round trip and decodes the reply.
func (a *NATSActions) do(ctx context.Context, req actionRequest) (actionReply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return actionReply{}, fmt.Errorf("platform: marshal %s: %w", req.Op, err)
	}
	respData, err := a.client.RequestAction(ctx, data)
	if err != nil {
		return actionReply{}, fmt.Errorf("platform: %s: %w", req.Op, err)
	}
	var reply actionReply
	if err := json.Unmarshal(respData, &reply); err != nil {
		return actionReply{}, fmt.Errorf("platform: decode %s reply: %w", req.Op, err)
	}
	if !reply.OK {
		if reply.Error == "" {
			reply.Error = "rejected"
		}
		return reply, fmt.Errorf("platform: %s: %s", req.Op, reply.Error)
	}
	return reply, nil
}

func (a *NATSActions) DeleteMessage(ctx context.Context, chatID, msgID int64) error {
	_, err := a.do(ctx, actionRequest{Op: "delete_message", ChatID: chatID, MsgID: msgID})
	return err
}

func (a *NATSActions) DeleteMessages(ctx context.Context, chatID int64, msgIDs []int64) error {
	if len(msgIDs) == 0 {
		return errors.New("platform: delete_messages: empty id list")
	}
	_, err := a.do(ctx, actionRequest{Op: "delete_messages", ChatID: chatID, MsgIDs: msgIDs})
	return err
}

func (a *NATSActions) BanUser(ctx context.Context, chatID, userID int64, revokeHistory bool) error {
	_, err := a.do(ctx, actionRequest{Op: "ban_user", ChatID: chatID, UserID: userID, Revoke: revokeHistory})
	return err
}

func (a *NATSActions) BanSenderChat(ctx context.Context, chatID, senderChatID int64) error {
	_, err := a.do(ctx, actionRequest{Op: "ban_sender_chat", ChatID: chatID, SenderChatID: senderChatID})
	return err
}

func (a *NATSActions) UnbanUser(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error {
	_, err := a.do(ctx, actionRequest{Op: "unban_user", ChatID: chatID, UserID: userID, OnlyIfBanned: onlyIfBanned})
	return err
}

func (a *NATSActions) RestrictUser(ctx context.Context, chatID, userID int64, perms Permissions) error {
	_, err := a.do(ctx, actionRequest{Op: "restrict_user", ChatID: chatID, UserID: userID, Perms: &perms})
	return err
}

func (a *NATSActions) SendText(ctx context.Context, chatID int64, text string, formatted bool) error {
	_, err := a.do(ctx, actionRequest{Op: "send_text", ChatID: chatID, Text: text, Formatted: formatted})
	return err
}

func (a *NATSActions) GetRole(ctx context.Context, chatID, userID int64) (Role, error) {
	reply, err := a.do(ctx, actionRequest{Op: "get_role", ChatID: chatID, UserID: userID})
	if err != nil {
		return RoleUnknown, err
	}
	return reply.Role, nil
}

func (a *NATSActions) ResolveChatHandle(ctx context.Context, handle string) (int64, error) {
	reply, err := a.do(ctx, actionRequest{Op: "resolve_chat", Handle: handle})
	if err != nil {
		return 0, err
	}
	return reply.ChatID, nil
}

var _ Actions = (*NATSActions)(nil)
