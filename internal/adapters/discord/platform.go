package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

const membersPageSize = 1000

// Platform implementa service.Platform sobre una sesion de discordgo.
type Platform struct {
	s          *discordgo.Session
	log        *slog.Logger
	logChannel string
}

func NewPlatform(s *discordgo.Session, log *slog.Logger, logChannel string) *Platform {
	return &Platform{s: s, log: log, logChannel: logChannel}
}

func (p *Platform) SelfID() string {
	if p.s.State == nil || p.s.State.User == nil {
		return ""
	}
	return p.s.State.User.ID
}

var auditActions = map[domain.ActionKind]discordgo.AuditLogAction{
	domain.ActionChannelDelete: discordgo.AuditLogActionChannelDelete,
	domain.ActionRoleDelete:    discordgo.AuditLogActionRoleDelete,
	domain.ActionMemberBan:     discordgo.AuditLogActionMemberBanAdd,
}

func (p *Platform) LatestAuditEntry(ctx context.Context, guildID string, kind domain.ActionKind) (*domain.AuditEntry, error) {
	action, ok := auditActions[kind]
	if !ok {
		return nil, fmt.Errorf("no audit action for %s", kind)
	}
	al, err := p.s.GuildAuditLog(guildID, "", "", int(action), 1, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("audit log", err)
	}
	return auditEntryFrom(al), nil
}

func auditEntryFrom(al *discordgo.GuildAuditLog) *domain.AuditEntry {
	if al == nil || len(al.AuditLogEntries) == 0 || al.AuditLogEntries[0] == nil {
		return nil
	}
	e := al.AuditLogEntries[0]
	out := &domain.AuditEntry{ActorID: e.UserID, TargetID: e.TargetID, Reason: e.Reason}
	for _, u := range al.Users {
		if u != nil && u.ID == e.UserID {
			out.ActorTag = u.String()
			break
		}
	}
	return out
}

func (p *Platform) Roles(ctx context.Context, guildID string) ([]domain.Role, error) {
	rs, err := p.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("list roles", err)
	}
	out := make([]domain.Role, 0, len(rs))
	for _, r := range rs {
		out = append(out, roleFrom(r))
	}
	return out, nil
}

func roleFrom(r *discordgo.Role) domain.Role {
	return domain.Role{
		ID:          r.ID,
		Name:        r.Name,
		Permissions: r.Permissions,
		Color:       r.Color,
		Position:    r.Position,
		Mentionable: r.Mentionable,
		Hoist:       r.Hoist,
		Managed:     r.Managed,
	}
}

func (p *Platform) Channels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	cs, err := p.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("list channels", err)
	}
	out := make([]domain.Channel, 0, len(cs))
	for _, c := range cs {
		if dc, ok := channelFrom(c); ok {
			out = append(out, dc)
		}
	}
	return out, nil
}

// channelFrom solo traduce texto, voz y categorias; el resto no se respalda.
func channelFrom(c *discordgo.Channel) (domain.Channel, bool) {
	var kind domain.ChannelKind
	switch c.Type {
	case discordgo.ChannelTypeGuildText:
		kind = domain.ChannelText
	case discordgo.ChannelTypeGuildVoice:
		kind = domain.ChannelVoice
	case discordgo.ChannelTypeGuildCategory:
		kind = domain.ChannelCategory
	default:
		return domain.Channel{}, false
	}
	out := domain.Channel{
		ID:       c.ID,
		Name:     c.Name,
		Kind:     kind,
		Position: c.Position,
		ParentID: c.ParentID,
		Topic:    c.Topic,
		NSFW:     c.NSFW,
	}
	for _, ow := range c.PermissionOverwrites {
		if ow == nil {
			continue
		}
		t := domain.OverwriteRole
		if ow.Type == discordgo.PermissionOverwriteTypeMember {
			t = domain.OverwriteMember
		}
		out.Overwrites = append(out.Overwrites, domain.Overwrite{TargetID: ow.ID, TargetType: t, Allow: ow.Allow, Deny: ow.Deny})
	}
	return out, true
}

// Members pagina de a 1000 (maximo de la API).
func (p *Platform) Members(ctx context.Context, guildID string) ([]domain.Member, error) {
	var out []domain.Member
	after := ""
	for {
		ms, err := p.s.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapErr("list members", err)
		}
		for _, m := range ms {
			if m == nil || m.User == nil {
				continue
			}
			out = append(out, memberFrom(m))
			after = m.User.ID
		}
		if len(ms) < membersPageSize {
			return out, nil
		}
	}
}

func memberFrom(m *discordgo.Member) domain.Member {
	return domain.Member{
		ID:       m.User.ID,
		Tag:      m.User.String(),
		Bot:      m.User.Bot,
		RoleIDs:  append([]string(nil), m.Roles...),
		Nickname: m.Nick,
	}
}

// IsMember mira primero el state y despues pregunta a la API.
func (p *Platform) IsMember(ctx context.Context, guildID, userID string) bool {
	if m, err := p.s.State.Member(guildID, userID); err == nil && m != nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	m, err := p.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if !errors.Is(wrapErr("member", err), domain.ErrNotFound) {
			p.log.Warn("member lookup failed", "guild", guildID, "user", userID, "err", err)
			// ante la duda no lo tratamos como fantasma
			return true
		}
		return false
	}
	return m != nil
}

func (p *Platform) Invites(ctx context.Context, guildID string) ([]domain.Invite, error) {
	is, err := p.s.GuildInvites(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("list invites", err)
	}
	out := make([]domain.Invite, 0, len(is))
	for _, inv := range is {
		di := domain.Invite{Code: inv.Code}
		if inv.Channel != nil {
			di.ChannelID = inv.Channel.ID
		}
		out = append(out, di)
	}
	return out, nil
}

func (p *Platform) Webhook(ctx context.Context, channelID, webhookID string) (*domain.Webhook, error) {
	wh, err := p.s.Webhook(webhookID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("get webhook", err)
	}
	if wh.ChannelID != "" && channelID != "" && wh.ChannelID != channelID {
		return nil, domain.ErrNotFound
	}
	out := &domain.Webhook{ID: wh.ID, ChannelID: wh.ChannelID, Name: wh.Name}
	if wh.User != nil {
		out.OwnerID = wh.User.ID
	}
	return out, nil
}

func (p *Platform) Ban(ctx context.Context, guildID, userID, reason string) error {
	err := p.s.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
	return wrapErr("ban", err)
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return wrapErr("delete message", p.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (p *Platform) DeleteWebhook(ctx context.Context, webhookID, reason string) error {
	err := p.s.WebhookDelete(webhookID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return wrapErr("delete webhook", err)
}

func (p *Platform) DeleteInvite(ctx context.Context, code, reason string) error {
	_, err := p.s.InviteDelete(code, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return wrapErr("delete invite", err)
}

func (p *Platform) CreateRole(ctx context.Context, guildID string, r domain.Role, reason string) (string, error) {
	created, err := p.s.GuildRoleCreate(guildID, roleParams(r), discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return "", wrapErr("create role", err)
	}
	return created.ID, nil
}

func roleParams(r domain.Role) *discordgo.RoleParams {
	color := r.Color
	hoist := r.Hoist
	perms := r.Permissions
	mentionable := r.Mentionable
	return &discordgo.RoleParams{
		Name:        r.Name,
		Color:       &color,
		Hoist:       &hoist,
		Permissions: &perms,
		Mentionable: &mentionable,
	}
}

func (p *Platform) CreateChannel(ctx context.Context, guildID string, c domain.Channel, reason string) (string, error) {
	created, err := p.s.GuildChannelCreateComplex(guildID, channelCreateData(c), discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return "", wrapErr("create channel", err)
	}
	return created.ID, nil
}

func channelCreateData(c domain.Channel) discordgo.GuildChannelCreateData {
	t := discordgo.ChannelTypeGuildText
	if c.Kind == domain.ChannelVoice {
		t = discordgo.ChannelTypeGuildVoice
	}
	return discordgo.GuildChannelCreateData{
		Name:     c.Name,
		Type:     t,
		Topic:    c.Topic,
		Position: c.Position,
		ParentID: c.ParentID,
		NSFW:     c.NSFW,
	}
}

func (p *Platform) SetOverwrite(ctx context.Context, channelID string, o domain.Overwrite, reason string) error {
	t := discordgo.PermissionOverwriteTypeRole
	if o.TargetType == domain.OverwriteMember {
		t = discordgo.PermissionOverwriteTypeMember
	}
	err := p.s.ChannelPermissionSet(channelID, o.TargetID, t, o.Allow, o.Deny, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return wrapErr("set overwrite", err)
}

func (p *Platform) SetRolePermissions(ctx context.Context, guildID, roleID string, perms int64, reason string) error {
	_, err := p.s.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Permissions: &perms}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return wrapErr("edit role", err)
}

// SendLog busca el canal de logs por nombre; si no existe va a consola.
func (p *Platform) SendLog(ctx context.Context, guildID, content string) error {
	chID := p.logChannelID(guildID)
	if chID == "" {
		p.log.Info("security log (sin canal)", "guild", guildID, "content", content)
		return nil
	}
	_, err := p.s.ChannelMessageSend(chID, content, discordgo.WithContext(ctx))
	return wrapErr("send log", err)
}

func (p *Platform) logChannelID(guildID string) string {
	g, err := p.s.State.Guild(guildID)
	if err != nil || g == nil {
		return ""
	}
	for _, c := range g.Channels {
		if c != nil && c.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(c.Name, p.logChannel) {
			return c.ID
		}
	}
	return ""
}

// GuildIDs: todos los guilds donde esta el bot (para backups programados).
func (p *Platform) GuildIDs() []string {
	if p.s.State == nil {
		return nil
	}
	p.s.State.RLock()
	defer p.s.State.RUnlock()
	out := make([]string, 0, len(p.s.State.Guilds))
	for _, g := range p.s.State.Guilds {
		out = append(out, g.ID)
	}
	return out
}

// wrapErr pasa los errores REST a *domain.PlatformError.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	pe := &domain.PlatformError{Op: op, Err: err}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Response != nil {
			pe.Status = rest.Response.StatusCode
		}
		if rest.Message != nil {
			pe.Code = rest.Message.Code
		}
	}
	return pe
}
