// logica de InteractionApplicationCommand: valida permisos y cooldown, despacha al Guard
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

func (r *Router) commandTable() map[string]Command {
	cmds := []Command{
		{Name: "ping", Description: "Latencia", AdminOnly: true, Handler: r.cmdPing},
		{Name: "lockdown", AdminOnly: true, Handler: r.cmdLockdown},
		{Name: "restore", AdminOnly: true, Handler: r.cmdRestore},
		{Name: "backup", AdminOnly: true, Handler: r.cmdBackup},
		{Name: "whitelist", AdminOnly: true, Handler: r.cmdWhitelist},
		{Name: "status", AdminOnly: true, Handler: r.cmdStatus},
	}
	out := make(map[string]Command, len(cmds))
	for _, c := range cmds {
		out[c.Name] = c
	}
	return out
}

func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.ApplicationCommandData()
	userID := interactionUserID(ic)
	log := r.log.With("cmd", data.Name, "user", userID, "guild", ic.GuildID)
	log.Info("slash command")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in slash command", "err", rec)
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado procesando el comando.")
		}
	}()

	cmd, ok := r.commands[data.Name]
	if !ok {
		_ = SendEphemeral(s, ic, "❓ Comando desconocido.")
		return
	}
	if ic.GuildID == "" {
		_ = SendEphemeral(s, ic, "Este comando solo funciona dentro de un servidor.")
		return
	}
	if !r.cooldown.Allow(userID) {
		_ = SendEphemeral(s, ic, "⏳ Espera un momento antes de usar otro comando.")
		return
	}

	_ = DeferEphemeral(s, ic)
	if cmd.AdminOnly && !r.requireAdminOrRoles(s, ic) {
		return
	}

	// restore puede tardar por el rate limit
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	defer step("cmd." + data.Name)()

	c := &Ctx{
		Log:     log,
		Session: s,
		Event:   ic,
		GuildID: ic.GuildID,
		UserID:  userID,
		Args:    collectArgs(data.Options),
	}
	if err := cmd.Handler(ctx, c); err != nil {
		log.Warn("slash command failed", "err", err)
		ReplyEphemeral(s, ic, userError(err))
	}
}

func (r *Router) cmdPing(_ context.Context, c *Ctx) error {
	ReplyEphemeral(c.Session, c.Event, fmt.Sprintf("🏓 Pong! (%s)", c.Session.HeartbeatLatency().Round(time.Millisecond)))
	return nil
}

func (r *Router) cmdLockdown(ctx context.Context, c *Ctx) error {
	reason := strings.TrimSpace(c.Args["reason"])
	if reason == "" {
		reason = "manual por " + c.UserID
	}
	switch c.Args["action"] {
	case "enable":
		st, rep, err := r.guard.EnableLockdown(ctx, c.GuildID, reason)
		if errors.Is(err, domain.ErrLockdownActive) {
			ReplyEphemeral(c.Session, c.Event, fmt.Sprintf("🔒 El servidor ya está en lockdown desde <t:%d:R> (%s).", st.StartedAt.Unix(), st.Reason))
			return nil
		}
		if err != nil {
			return err
		}
		ReplyEphemeral(c.Session, c.Event, "🔒 **Lockdown activado.**\n"+formatReport(rep))
	case "disable":
		rep, err := r.guard.DisableLockdown(ctx, c.GuildID, reason)
		if errors.Is(err, domain.ErrNotLocked) {
			ReplyEphemeral(c.Session, c.Event, "ℹ️ El servidor no está en lockdown.")
			return nil
		}
		if err != nil {
			return err
		}
		ReplyEphemeral(c.Session, c.Event, "🔓 **Lockdown desactivado.**\n"+formatReport(rep))
	default:
		ReplyEphemeral(c.Session, c.Event, "Usa `/lockdown action:enable` o `/lockdown action:disable`.")
	}
	return nil
}

func (r *Router) cmdRestore(ctx context.Context, c *Ctx) error {
	scope, err := domain.ParseRestoreScope(c.Args["type"])
	if err != nil {
		ReplyEphemeral(c.Session, c.Event, "Usa `/restore type:all|roles|channels`.")
		return nil
	}
	rep, err := r.guard.Restore(ctx, c.GuildID, scope)
	if err != nil {
		return err
	}
	ReplyEphemeral(c.Session, c.Event, "♻️ **Restauración terminada.**\n"+formatReport(rep))
	return nil
}

func (r *Router) cmdBackup(ctx context.Context, c *Ctx) error {
	snap, err := r.guard.Backup(ctx, c.GuildID)
	if err != nil {
		return err
	}
	ReplyEphemeral(c.Session, c.Event, fmt.Sprintf("💾 Backup guardado: %d roles, %d canales, %d miembros.", len(snap.Roles), len(snap.Channels), len(snap.Members)))
	return nil
}

func (r *Router) cmdWhitelist(_ context.Context, c *Ctx) error {
	action := c.Args["action"]
	if action == "list" {
		ids := r.guard.AllowList()
		if len(ids) == 0 {
			ReplyEphemeral(c.Session, c.Event, "📋 La whitelist está vacía.")
			return nil
		}
		var b strings.Builder
		b.WriteString("📋 **Whitelist**\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "• <@%s> (`%s`)\n", id, id)
		}
		ReplyEphemeral(c.Session, c.Event, b.String())
		return nil
	}

	ids := parseIDs(c.Args["user"])
	if len(ids) == 0 {
		ReplyEphemeral(c.Session, c.Event, "Indica un usuario: `/whitelist action:"+action+" user:@alguien`.")
		return nil
	}
	uid := ids[0]
	switch action {
	case "add":
		if r.guard.AllowAdd(uid) {
			ReplyEphemeral(c.Session, c.Event, fmt.Sprintf("✅ <@%s> agregado a la whitelist.", uid))
		} else {
			ReplyEphemeral(c.Session, c.Event, fmt.Sprintf("ℹ️ <@%s> ya estaba en la whitelist.", uid))
		}
	case "remove":
		if r.guard.AllowRemove(uid) {
			ReplyEphemeral(c.Session, c.Event, fmt.Sprintf("✅ <@%s> removido de la whitelist.", uid))
		} else {
			ReplyEphemeral(c.Session, c.Event, fmt.Sprintf("ℹ️ <@%s> no estaba en la whitelist.", uid))
		}
	default:
		ReplyEphemeral(c.Session, c.Event, "Usa `add`, `remove` o `list`.")
	}
	return nil
}

func (r *Router) cmdStatus(_ context.Context, c *Ctx) error {
	ReplyEphemeral(c.Session, c.Event, "", statusEmbed(r.guard.Status(c.GuildID), r.guard.Policy()))
	return nil
}
