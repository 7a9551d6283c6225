package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

// una escalada incluye ban + lockdown + restore con rate limit
const eventTimeout = 3 * time.Minute

func (r *Router) eventHandlers() {
	r.s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		ev, ok := messageEvent(m)
		if !ok {
			return
		}
		r.dispatch("message", ev.GuildID, func(ctx context.Context) (domain.Verdict, error) {
			return r.guard.Threats.OnMessage(ctx, ev)
		})
	})

	r.s.AddHandler(func(s *discordgo.Session, c *discordgo.ChannelDelete) {
		if c.Channel == nil || c.GuildID == "" {
			return
		}
		ev := domain.ChannelDeleteEvent{GuildID: c.GuildID, ChannelID: c.ID, Name: c.Name, At: time.Now()}
		r.dispatch("channel_delete", ev.GuildID, func(ctx context.Context) (domain.Verdict, error) {
			return r.guard.Threats.OnChannelDelete(ctx, ev)
		})
	})

	r.s.AddHandler(func(s *discordgo.Session, rd *discordgo.GuildRoleDelete) {
		ev := domain.RoleDeleteEvent{GuildID: rd.GuildID, RoleID: rd.RoleID, At: time.Now()}
		// el state ya saco el rol; el nombre sale del ultimo backup si lo hay
		if snap, ok := r.guard.Backups.Latest(rd.GuildID); ok {
			if role, found := snap.Role(rd.RoleID); found {
				ev.Name = role.Name
			}
		}
		r.dispatch("role_delete", ev.GuildID, func(ctx context.Context) (domain.Verdict, error) {
			return r.guard.Threats.OnRoleDelete(ctx, ev)
		})
	})

	r.s.AddHandler(func(s *discordgo.Session, b *discordgo.GuildBanAdd) {
		if b.User == nil {
			return
		}
		ev := domain.BanAddEvent{GuildID: b.GuildID, UserID: b.User.ID, UserTag: b.User.String(), At: time.Now()}
		r.dispatch("ban_add", ev.GuildID, func(ctx context.Context) (domain.Verdict, error) {
			return r.guard.Threats.OnBanAdd(ctx, ev)
		})
	})

	r.s.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if m.Member == nil || m.User == nil {
			return
		}
		ev := domain.MemberAddEvent{GuildID: m.GuildID, Member: memberFrom(m.Member), At: time.Now()}
		r.dispatch("member_add", ev.GuildID, func(ctx context.Context) (domain.Verdict, error) {
			return r.guard.Threats.OnMemberAdd(ctx, ev)
		})
	})

	// al arrancar (y al entrar a un guild nuevo) sembramos confianza y tomamos backup
	r.s.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if g.Guild == nil || g.Unavailable {
			return
		}
		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
			defer cancel()
			r.guard.Prepare(ctx, []string{id})
		}(g.ID)
	})
}

// dispatch corre el handler con timeout y recover; nunca tumba el proceso.
func (r *Router) dispatch(typ, guildID string, fn func(ctx context.Context) (domain.Verdict, error)) {
	log := r.log.With("event", typ, "guild", guildID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("guard event execution exception", "err", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil {
		log.Warn("guard event failed", "decision", v.Decision, "actor", v.ActorID, "err", err)
		return
	}
	if v.Decision != domain.DecisionNone && v.Decision != domain.DecisionExempt {
		log.Info("guard verdict", "decision", v.Decision, "kind", v.Kind, "actor", v.ActorID, "count", v.Count, "threshold", v.Threshold)
	}
}

func messageEvent(m *discordgo.MessageCreate) (domain.MessageEvent, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.GuildID == "" {
		return domain.MessageEvent{}, false
	}
	at := m.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return domain.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		AuthorTag: m.Author.String(),
		AuthorBot: m.Author.Bot,
		WebhookID: m.WebhookID,
		Content:   m.Content,
		At:        at,
	}, true
}
