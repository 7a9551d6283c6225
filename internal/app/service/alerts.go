package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

// Alerter reparte una alerta a slog, al canal de logs del guild, al webhook externo y al journal.
// Ningun sink bloquea ni rompe a los otros: los errores solo se loguean.
type Alerter struct {
	log      *slog.Logger
	platform Platform
	notifier Notifier        // opcional
	journal  IncidentJournal // opcional
	now      func() time.Time
}

func NewAlerter(log *slog.Logger, platform Platform, notifier Notifier, journal IncidentJournal) *Alerter {
	return &Alerter{log: log, platform: platform, notifier: notifier, journal: journal, now: time.Now}
}

func (a *Alerter) Emit(ctx context.Context, al domain.Alert) domain.Alert {
	if al.ID == "" {
		al.ID = uuid.NewString()
	}
	if al.At.IsZero() {
		al.At = a.now()
	}
	alertCount.WithLabelValues(string(al.Severity)).Inc()

	attrs := []any{"guild", al.GuildID, "kind", al.Kind, "alert_id", al.ID}
	if al.ActorID != "" {
		attrs = append(attrs, "actor", al.ActorID)
	}
	if len(al.Affected) > 0 {
		attrs = append(attrs, "affected", al.Affected)
	}
	switch al.Severity {
	case domain.SeverityCritical:
		a.log.Error(al.Message, attrs...)
	case domain.SeverityWarning:
		a.log.Warn(al.Message, attrs...)
	default:
		a.log.Info(al.Message, attrs...)
	}

	if a.platform != nil && al.GuildID != "" {
		if err := a.platform.SendLog(ctx, al.GuildID, FormatAlert(al)); err != nil {
			a.log.Warn("send security log failed", "guild", al.GuildID, "err", err)
		}
	}
	if a.notifier != nil && al.Severity != domain.SeverityInfo {
		if err := a.notifier.Notify(ctx, al); err != nil {
			a.log.Warn("alert webhook failed", "guild", al.GuildID, "err", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Append(ctx, al); err != nil {
			a.log.Warn("incident journal append failed", "guild", al.GuildID, "err", err)
		}
	}
	return al
}

// FormatAlert es el texto que va al canal de logs y al webhook.
func FormatAlert(al domain.Alert) string {
	icon := "ℹ️"
	switch al.Severity {
	case domain.SeverityWarning:
		icon = "⚠️"
	case domain.SeverityCritical:
		icon = "🚨"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**: %s", icon, al.Kind, al.Message)
	if al.ActorID != "" {
		fmt.Fprintf(&b, "\n👤 Actor: <@%s> (`%s`)", al.ActorID, al.ActorID)
	}
	if len(al.Affected) > 0 {
		fmt.Fprintf(&b, "\n📌 Afectados: %s", strings.Join(al.Affected, ", "))
	}
	return b.String()
}
