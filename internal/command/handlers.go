package command

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/whisper/modengine/internal/directory"
	"github.com/whisper/modengine/internal/globalban"
	"github.com/whisper/modengine/internal/platform"
)

// AdminChecker reports whether a user is an admin or owner of a chat.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) bool
}

// Auditor is the optional moderation action log sink.
type Auditor interface {
	Record(ctx context.Context, chatID, userID int64, action, reason string) error
}

// Ledger is the optional write-through ban ledger.
type Ledger interface {
	RecordBan(ctx context.Context, chatID, userID int64, reason string) error
	ClearBan(ctx context.Context, chatID, userID int64) error
}

// Config carries the command surface's collaborators. Audit and Ledger may
// be nil; OperatorID identifies the single privileged operator.
type Config struct {
	Actions    platform.Actions
	Directory  *directory.Directory
	Admins     AdminChecker
	GlobalBans *globalban.Controller
	OperatorID int64
	Audit      Auditor
	Ledger     Ledger

	// Started is when the process came up, reported by /sudo.
	Started time.Time
}

// Commands implements every moderation command handler.
type Commands struct {
	actions    platform.Actions
	directory  *directory.Directory
	admins     AdminChecker
	globalBans *globalban.Controller
	operatorID int64
	audit      Auditor
	ledger     Ledger
	started    time.Time
}

// New returns the command surface wired to the given collaborators.
func New(cfg Config) *Commands {
	started := cfg.Started
	if started.IsZero() {
		started = time.Now()
	}
	return &Commands{
		actions:    cfg.Actions,
		directory:  cfg.Directory,
		admins:     cfg.Admins,
		globalBans: cfg.GlobalBans,
		operatorID: cfg.OperatorID,
		audit:      cfg.Audit,
		ledger:     cfg.Ledger,
		started:    started,
	}
}

// Router returns a Router with every command registered.
func (c *Commands) Router() *Router {
	r := NewRouter()
	r.Register("start", c.Start)
	r.Register("ban", c.Ban)
	r.Register("unban", c.Unban)
	r.Register("kick", c.Kick)
	r.Register("mute", c.Mute)
	r.Register("unmute", c.Unmute)
	r.Register("deleteall", c.DeleteAll)
	r.Register("gban", c.GlobalBan)
	r.Register("sudo", c.Sudo)
	return r
}

// reply sends a plain-text response into the chat the command was typed in.
// Send failures are logged and dropped; there is nowhere else to surface them.
func (c *Commands) reply(ctx context.Context, inv *Invocation, text string) {
	if err := c.actions.SendText(ctx, inv.Chat.ID, text, false); err != nil {
		log.Printf("[command] reply to chat=%d failed: %v", inv.Chat.ID, err)
	}
}

// scope resolves the chat a command acts on, prompting the caller on failure.
func (c *Commands) scope(ctx context.Context, inv *Invocation) (int64, bool) {
	chatID, err := c.ResolveScope(ctx, inv)
	if err != nil {
		c.reply(ctx, inv, promptNeedChatLink)
		return 0, false
	}
	return chatID, true
}

// target resolves the user a command acts on, prompting the caller on failure.
func (c *Commands) target(ctx context.Context, inv *Invocation) (Target, bool) {
	t, err := c.ResolveTarget(inv)
	if err != nil {
		c.reply(ctx, inv, promptNeedTarget)
		return Target{}, false
	}
	return t, true
}

// requireAdmin checks that the caller may moderate chatID: the configured
// operator always may; anyone else must be an admin of that chat.
func (c *Commands) requireAdmin(ctx context.Context, inv *Invocation, chatID int64) bool {
	if inv.From.ID == c.operatorID {
		return true
	}
	if c.admins.IsAdmin(ctx, chatID, inv.From.ID) {
		return true
	}
	c.reply(ctx, inv, "❌ You must be an admin to use this command.")
	return false
}

func (c *Commands) recordAudit(ctx context.Context, chatID, userID int64, action, reason string) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Record(ctx, chatID, userID, action, reason); err != nil {
		log.Printf("[command] audit record failed: %v", err)
	}
}

// Start greets the user.
func (c *Commands) Start(ctx context.Context, inv *Invocation) {
	c.reply(ctx, inv, "🤖 Hello! I am online.\nEnsure I have Admin rights to manage messages and ban users.")
}

// Ban permanently bans the target from the scope chat. History is kept;
// /deleteall is the wipe variant.
func (c *Commands) Ban(ctx context.Context, inv *Invocation) {
	chatID, ok := c.scope(ctx, inv)
	if !ok || !c.requireAdmin(ctx, inv, chatID) {
		return
	}
	target, ok := c.target(ctx, inv)
	if !ok {
		return
	}

	if err := c.actions.BanUser(ctx, chatID, target.ID, false); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to ban: %v", err))
		return
	}
	c.recordAudit(ctx, chatID, target.ID, "ban", "by user "+fmt.Sprint(inv.From.ID))
	if c.ledger != nil {
		if err := c.ledger.RecordBan(ctx, chatID, target.ID, "command ban"); err != nil {
			log.Printf("[command] ban ledger write failed: %v", err)
		}
	}
	c.reply(ctx, inv, fmt.Sprintf("🔨 %s has been permanently banned.", target.Label))
}

// Unban lifts a ban without kicking a present member.
func (c *Commands) Unban(ctx context.Context, inv *Invocation) {
	chatID, ok := c.scope(ctx, inv)
	if !ok || !c.requireAdmin(ctx, inv, chatID) {
		return
	}
	target, ok := c.target(ctx, inv)
	if !ok {
		return
	}

	if err := c.actions.UnbanUser(ctx, chatID, target.ID, true); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to unban: %v", err))
		return
	}
	c.recordAudit(ctx, chatID, target.ID, "unban", "by user "+fmt.Sprint(inv.From.ID))
	if c.ledger != nil {
		if err := c.ledger.ClearBan(ctx, chatID, target.ID); err != nil {
			log.Printf("[command] ban ledger clear failed: %v", err)
		}
	}
	c.reply(ctx, inv, fmt.Sprintf("🕊️ %s has been unbanned.", target.Label))
}

// Kick removes the target from the chat without a lasting ban: a ban
// immediately followed by an unban.
func (c *Commands) Kick(ctx context.Context, inv *Invocation) {
	chatID, ok := c.scope(ctx, inv)
	if !ok || !c.requireAdmin(ctx, inv, chatID) {
		return
	}
	target, ok := c.target(ctx, inv)
	if !ok {
		return
	}

	if err := c.actions.BanUser(ctx, chatID, target.ID, false); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to kick: %v", err))
		return
	}
	if err := c.actions.UnbanUser(ctx, chatID, target.ID, false); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to kick: %v", err))
		return
	}
	c.recordAudit(ctx, chatID, target.ID, "kick", "by user "+fmt.Sprint(inv.From.ID))
	c.reply(ctx, inv, fmt.Sprintf("👢 %s has been kicked.", target.Label))
}

// Mute removes every permission from the target.
func (c *Commands) Mute(ctx context.Context, inv *Invocation) {
	chatID, ok := c.scope(ctx, inv)
	if !ok || !c.requireAdmin(ctx, inv, chatID) {
		return
	}
	target, ok := c.target(ctx, inv)
	if !ok {
		return
	}

	if err := c.actions.RestrictUser(ctx, chatID, target.ID, platform.Permissions{}); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to mute: %v", err))
		return
	}
	c.recordAudit(ctx, chatID, target.ID, "mute", "by user "+fmt.Sprint(inv.From.ID))
	c.reply(ctx, inv, fmt.Sprintf("🔇 %s has been muted.", target.Label))
}

// Unmute restores every permission to the target.
func (c *Commands) Unmute(ctx context.Context, inv *Invocation) {
	chatID, ok := c.scope(ctx, inv)
	if !ok || !c.requireAdmin(ctx, inv, chatID) {
		return
	}
	target, ok := c.target(ctx, inv)
	if !ok {
		return
	}

	if err := c.actions.RestrictUser(ctx, chatID, target.ID, platform.AllPermissions()); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to unmute: %v", err))
		return
	}
	c.recordAudit(ctx, chatID, target.ID, "unmute", "by user "+fmt.Sprint(inv.From.ID))
	c.reply(ctx, inv, fmt.Sprintf("🔊 %s has been unmuted.", target.Label))
}

// DeleteAll wipes the target's message history: a revoking ban immediately
// undone so the user may rejoin.
func (c *Commands) DeleteAll(ctx context.Context, inv *Invocation) {
	chatID, ok := c.scope(ctx, inv)
	if !ok || !c.requireAdmin(ctx, inv, chatID) {
		return
	}
	target, ok := c.target(ctx, inv)
	if !ok {
		return
	}

	if err := c.actions.BanUser(ctx, chatID, target.ID, true); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to delete all messages: %v", err))
		return
	}
	if err := c.actions.UnbanUser(ctx, chatID, target.ID, true); err != nil {
		c.reply(ctx, inv, fmt.Sprintf("Failed to delete all messages: %v", err))
		return
	}
	c.recordAudit(ctx, chatID, target.ID, "wipe", "by user "+fmt.Sprint(inv.From.ID))
	c.reply(ctx, inv, fmt.Sprintf("🧹 All messages from %s wiped.", target.Label))
}

// GlobalBan fans a revoking ban across every known chat. Operator-only:
// any other caller is rejected before anything runs.
func (c *Commands) GlobalBan(ctx context.Context, inv *Invocation) {
	if inv.From.ID != c.operatorID {
		c.reply(ctx, inv, "❌ Strict Developer Command.")
		return
	}
	target, ok := c.target(ctx, inv)
	if !ok {
		return
	}

	c.reply(ctx, inv, fmt.Sprintf("Starting GBAN for %s...", target.Label))
	report := c.globalBans.Execute(ctx, target.ID, "global ban by operator")
	c.recordAudit(ctx, inv.Chat.ID, target.ID, "global_ban",
		fmt.Sprintf("banned=%d failed=%d", report.Banned, report.Failed))
	c.reply(ctx, inv, fmt.Sprintf("🌍 GBAN Complete for %s\n✅ Banned in %d groups\n❌ Failed in %d groups.",
		target.Label, report.Banned, report.Failed))
}

// Sudo reports liveness to the operator; silent for anyone else.
func (c *Commands) Sudo(ctx context.Context, inv *Invocation) {
	if inv.From.ID != c.operatorID {
		return
	}
	uptime := time.Since(c.started)
	c.reply(ctx, inv, fmt.Sprintf("🏓 Pong!\n⏳ Uptime: %.2f seconds\n🛡️ Active in %d tracked chats.",
		uptime.Seconds(), c.directory.ChatCount()))
}
