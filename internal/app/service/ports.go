package service

import (
	"context"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

// Lo implementa internal/adapters/discord.Platform
type Platform interface {
	// SelfID es el user id del bot; siempre exento.
	SelfID() string

	// LatestAuditEntry devuelve (nil, nil) si no hay entrada para esa accion.
	LatestAuditEntry(ctx context.Context, guildID string, kind domain.ActionKind) (*domain.AuditEntry, error)
	Roles(ctx context.Context, guildID string) ([]domain.Role, error)
	Channels(ctx context.Context, guildID string) ([]domain.Channel, error)
	Members(ctx context.Context, guildID string) ([]domain.Member, error)
	IsMember(ctx context.Context, guildID, userID string) bool
	Invites(ctx context.Context, guildID string) ([]domain.Invite, error)
	Webhook(ctx context.Context, channelID, webhookID string) (*domain.Webhook, error)

	Ban(ctx context.Context, guildID, userID, reason string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	DeleteWebhook(ctx context.Context, webhookID, reason string) error
	DeleteInvite(ctx context.Context, code, reason string) error
	CreateRole(ctx context.Context, guildID string, r domain.Role, reason string) (string, error)
	CreateChannel(ctx context.Context, guildID string, c domain.Channel, reason string) (string, error)
	SetOverwrite(ctx context.Context, channelID string, o domain.Overwrite, reason string) error
	SetRolePermissions(ctx context.Context, guildID, roleID string, perms int64, reason string) error

	// SendLog escribe en el canal de logs del guild (o consola si no existe).
	SendLog(ctx context.Context, guildID, content string) error
}

// Lo implementa internal/adapters/alerthook.Client
type Notifier interface {
	Notify(ctx context.Context, a domain.Alert) error
}

// Lo implementa internal/infra/storage.IncidentRepo
type IncidentJournal interface {
	Append(ctx context.Context, a domain.Alert) error
}
