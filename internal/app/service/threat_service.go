package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/jose-valero/guild-guard-bot/internal/infra/storage"
)

const webhookCacheSize = 512

// ThreatService traduce cada evento en un Verdict y ejecuta la respuesta.
type ThreatService struct {
	log      *slog.Logger
	platform Platform
	store    *storage.MemStore
	policy   domain.Policy
	lockdown *LockdownService
	restore  *RestoreService
	alerts   *Alerter
	webhooks *expirable.LRU[string, domain.Webhook]
	now      func() time.Time
}

func NewThreatService(log *slog.Logger, platform Platform, store *storage.MemStore, policy domain.Policy,
	lockdown *LockdownService, restore *RestoreService, alerts *Alerter) *ThreatService {
	return &ThreatService{
		log:      log,
		platform: platform,
		store:    store,
		policy:   policy,
		lockdown: lockdown,
		restore:  restore,
		alerts:   alerts,
		webhooks: expirable.NewLRU[string, domain.Webhook](webhookCacheSize, nil, policy.WebhookCacheTTL),
		now:      time.Now,
	}
}

// Exempt: el bot mismo y la allow-list nunca reciben castigo.
func (s *ThreatService) Exempt(actorID string) bool {
	return actorID != "" && (actorID == s.platform.SelfID() || s.store.Allow.Has(actorID))
}

func (s *ThreatService) eventTime(at time.Time) time.Time {
	if at.IsZero() {
		return s.now()
	}
	return at
}

func observe(typ string, v domain.Verdict, err error) {
	eventProcessCount.WithLabelValues(typ).Inc()
	if err != nil {
		eventErrorCount.WithLabelValues(typ).Inc()
	}
	verdictCount.WithLabelValues(string(v.Kind), string(v.Decision)).Inc()
}

// OnMessage: lockdown, webhooks, bots fantasma y spam, en ese orden.
func (s *ThreatService) OnMessage(ctx context.Context, ev domain.MessageEvent) (v domain.Verdict, err error) {
	v = domain.Verdict{Decision: domain.DecisionNone, Kind: domain.ActionMessageSpam, ActorID: ev.AuthorID}
	defer func() { observe("message", v, err) }()

	if ev.GuildID == "" || ev.AuthorID == s.platform.SelfID() {
		return v, nil
	}
	log := s.log.With("guild", ev.GuildID, "channel", ev.ChannelID, "author", ev.AuthorID)

	if s.policy.LockdownDeletesMessages && s.lockdown.Active(ev.GuildID) && !s.Exempt(ev.AuthorID) {
		v.Decision = domain.DecisionDeleteMessage
		if err := s.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
			return v, fmt.Errorf("delete message during lockdown: %w", err)
		}
		return v, nil
	}

	if ev.WebhookID != "" {
		return s.onWebhookMessage(ctx, log, ev)
	}

	if s.Exempt(ev.AuthorID) {
		v.Decision = domain.DecisionExempt
		return v, nil
	}

	if ev.AuthorBot {
		if s.platform.IsMember(ctx, ev.GuildID, ev.AuthorID) {
			return v, nil
		}
		v.Decision = domain.DecisionDeleteMessage
		if err := s.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
			return v, fmt.Errorf("delete phantom bot message: %w", err)
		}
		s.alerts.Emit(ctx, domain.Alert{
			GuildID:  ev.GuildID,
			Severity: domain.SeverityWarning,
			Kind:     "phantom_bot",
			ActorID:  ev.AuthorID,
			Message:  fmt.Sprintf("Mensaje de bot fantasma %s eliminado.", ev.AuthorTag),
			Affected: []string{ev.ChannelID},
		})
		return v, nil
	}

	key := domain.ActorActionKey{GuildID: ev.GuildID, ActorID: ev.AuthorID, Kind: domain.ActionMessageSpam}
	v.Count = s.store.Counters.Record(key, s.eventTime(ev.At))
	v.Threshold = s.policy.MaxMessagesPerMinute
	trackedCounterKeys.Set(float64(s.store.Counters.Len()))
	if v.Count <= v.Threshold || !s.policy.AutoBan {
		return v, nil
	}

	v.Decision = domain.DecisionBan
	log.Warn("spam threshold exceeded", "count", v.Count, "threshold", v.Threshold)
	if err := s.platform.Ban(ctx, ev.GuildID, ev.AuthorID, "Anti-spam: demasiados mensajes por minuto"); err != nil {
		return v, fmt.Errorf("ban spammer: %w", err)
	}
	s.alerts.Emit(ctx, domain.Alert{
		GuildID:  ev.GuildID,
		Severity: domain.SeverityCritical,
		Kind:     "spam",
		ActorID:  ev.AuthorID,
		Message:  fmt.Sprintf("%s baneado por spam (%d mensajes/min, limite %d).", ev.AuthorTag, v.Count, v.Threshold),
	})
	return v, nil
}

func (s *ThreatService) onWebhookMessage(ctx context.Context, log *slog.Logger, ev domain.MessageEvent) (domain.Verdict, error) {
	v := domain.Verdict{Decision: domain.DecisionNone, Kind: domain.ActionMessageSpam, ActorID: ev.WebhookID}

	wh, ok := s.webhooks.Get(ev.WebhookID)
	if ok {
		webhookLookups.WithLabelValues("hit").Inc()
	} else {
		webhookLookups.WithLabelValues("miss").Inc()
		got, err := s.platform.Webhook(ctx, ev.ChannelID, ev.WebhookID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return v, nil
			}
			return v, fmt.Errorf("resolve webhook: %w", err)
		}
		if got == nil {
			return v, nil
		}
		wh = *got
		s.webhooks.Add(wh.ID, wh)
	}

	if s.Exempt(wh.OwnerID) {
		v.Decision = domain.DecisionExempt
		return v, nil
	}

	v.Decision = domain.DecisionDeleteWebhook
	v.ActorID = wh.OwnerID
	log.Warn("suspicious webhook", "webhook", wh.ID, "owner", wh.OwnerID)
	if err := s.platform.DeleteWebhook(ctx, wh.ID, "Webhook no autorizado"); err != nil {
		return v, fmt.Errorf("delete webhook: %w", err)
	}
	s.webhooks.Remove(wh.ID)
	s.alerts.Emit(ctx, domain.Alert{
		GuildID:  ev.GuildID,
		Severity: domain.SeverityWarning,
		Kind:     "webhook",
		ActorID:  wh.OwnerID,
		Message:  fmt.Sprintf("Webhook sospechoso %q eliminado.", wh.Name),
		Affected: []string{ev.ChannelID},
	})
	return v, nil
}

func (s *ThreatService) OnChannelDelete(ctx context.Context, ev domain.ChannelDeleteEvent) (v domain.Verdict, err error) {
	defer func() { observe("channel_delete", v, err) }()
	return s.onDestructive(ctx, ev.GuildID, domain.ActionChannelDelete, s.eventTime(ev.At), describe(ev.Name, ev.ChannelID))
}

func (s *ThreatService) OnRoleDelete(ctx context.Context, ev domain.RoleDeleteEvent) (v domain.Verdict, err error) {
	defer func() { observe("role_delete", v, err) }()
	return s.onDestructive(ctx, ev.GuildID, domain.ActionRoleDelete, s.eventTime(ev.At), describe(ev.Name, ev.RoleID))
}

func (s *ThreatService) OnBanAdd(ctx context.Context, ev domain.BanAddEvent) (v domain.Verdict, err error) {
	defer func() { observe("ban_add", v, err) }()
	return s.onDestructive(ctx, ev.GuildID, domain.ActionMemberBan, s.eventTime(ev.At), describe(ev.UserTag, ev.UserID))
}

// OnMemberAdd banea bots que entran sin estar en la allow-list.
func (s *ThreatService) OnMemberAdd(ctx context.Context, ev domain.MemberAddEvent) (v domain.Verdict, err error) {
	v = domain.Verdict{Decision: domain.DecisionNone, ActorID: ev.Member.ID}
	defer func() { observe("member_add", v, err) }()

	if !ev.Member.Bot {
		return v, nil
	}
	if s.Exempt(ev.Member.ID) {
		v.Decision = domain.DecisionExempt
		return v, nil
	}
	v.Decision = domain.DecisionBan
	if err := s.platform.Ban(ctx, ev.GuildID, ev.Member.ID, "Bot no autorizado"); err != nil {
		return v, fmt.Errorf("ban bot: %w", err)
	}
	s.alerts.Emit(ctx, domain.Alert{
		GuildID:  ev.GuildID,
		Severity: domain.SeverityCritical,
		Kind:     "unauthorized_bot",
		ActorID:  ev.Member.ID,
		Message:  fmt.Sprintf("Bot no autorizado %s baneado al entrar.", describe(ev.Member.Tag, ev.Member.ID)),
	})
	return v, nil
}

// onDestructive atribuye la accion por audit log, cuenta y escala.
// Desde el umbral en adelante cada evento banea, asegura el lockdown y
// restaura; el alerta critico sale solo al cruzar (count == umbral).
func (s *ThreatService) onDestructive(ctx context.Context, guildID string, kind domain.ActionKind, at time.Time, target string) (domain.Verdict, error) {
	v := domain.Verdict{Decision: domain.DecisionNone, Kind: kind, Threshold: s.policy.Threshold(kind)}
	log := s.log.With("guild", guildID, "kind", kind, "target", target)

	entry, err := s.platform.LatestAuditEntry(ctx, guildID, kind)
	if err != nil {
		return v, fmt.Errorf("audit lookup: %w", err)
	}
	if entry == nil || entry.ActorID == "" {
		v.Decision = domain.DecisionUnattributable
		log.Debug("destructive event without audit entry")
		return v, nil
	}
	v.ActorID = entry.ActorID
	actor := describe(entry.ActorTag, entry.ActorID)
	if s.Exempt(entry.ActorID) {
		v.Decision = domain.DecisionExempt
		return v, nil
	}

	key := domain.ActorActionKey{GuildID: guildID, ActorID: entry.ActorID, Kind: kind}
	v.Count = s.store.Counters.Record(key, at)
	trackedCounterKeys.Set(float64(s.store.Counters.Len()))
	log = log.With("actor", entry.ActorID, "count", v.Count, "threshold", v.Threshold)

	switch {
	case v.Count < v.Threshold:
		v.Decision = domain.DecisionWarn
		log.Warn("destructive action below threshold")
		s.alerts.Emit(ctx, domain.Alert{
			GuildID:  guildID,
			Severity: domain.SeverityWarning,
			Kind:     string(kind),
			ActorID:  entry.ActorID,
			Message:  fmt.Sprintf("%s por %s (%d/%d).", kind.DisplayName(), actor, v.Count, v.Threshold),
			Affected: []string{target},
		})
		return v, nil

	case v.Count > v.Threshold:
		// borrados que ya estaban en vuelo: se banea de nuevo y se cura igual
		v.Decision = domain.DecisionBan
		log.Warn("destructive action above threshold")
	default:
		v.Decision = domain.DecisionEscalate
		log.Error("destructive threshold reached, escalating")
	}

	var errs []error
	if err := s.platform.Ban(ctx, guildID, entry.ActorID, "Anti-nuke: "+kind.DisplayName()); err != nil {
		errs = append(errs, fmt.Errorf("ban actor: %w", err))
	}
	reason := fmt.Sprintf("%s por %s", kind.DisplayName(), actor)
	// Enable es no-op si ya hay lockdown: un solo episodio por nuke
	if _, _, err := s.lockdown.Enable(ctx, guildID, reason); err != nil && !errors.Is(err, domain.ErrLockdownActive) {
		errs = append(errs, fmt.Errorf("enable lockdown: %w", err))
	}
	if v.Decision == domain.DecisionEscalate {
		s.alerts.Emit(ctx, domain.Alert{
			GuildID:  guildID,
			Severity: domain.SeverityCritical,
			Kind:     string(kind),
			ActorID:  entry.ActorID,
			Message:  fmt.Sprintf("NUKE detectado: %s (%d/%d). Actor baneado y servidor en lockdown.", reason, v.Count, v.Threshold),
			Affected: []string{target},
		})
	}

	var scope domain.RestoreScope
	switch kind {
	case domain.ActionChannelDelete:
		scope = domain.RestoreChannels
	case domain.ActionRoleDelete:
		scope = domain.RestoreRoles
	}
	if scope != "" {
		if _, err := s.restore.Restore(ctx, guildID, scope); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", scope, err))
		}
	}
	return v, errors.Join(errs...)
}

func describe(name, id string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}
