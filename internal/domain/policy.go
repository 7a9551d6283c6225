package domain

import "time"

// Bits de permisos de Discord que el core necesita. Mismos valores que discordgo.Permission*.
const (
	PermKickMembers    int64 = 1 << 1
	PermBanMembers     int64 = 1 << 2
	PermAdministrator  int64 = 1 << 3
	PermManageChannels int64 = 1 << 4
	PermManageGuild    int64 = 1 << 5
	PermManageMessages int64 = 1 << 13
	PermManageRoles    int64 = 1 << 28
	PermManageWebhooks int64 = 1 << 29

	// Privileged: lo que entra en el snapshot.
	Privileged = PermAdministrator | PermManageGuild
	// Dangerous: lo que el lockdown saca de cada rol.
	Dangerous = PermAdministrator | PermManageGuild | PermManageRoles | PermManageChannels |
		PermBanMembers | PermKickMembers | PermManageMessages | PermManageWebhooks
)

// Policy son los umbrales y tiempos del guard. Se puede pisar desde un YAML.
type Policy struct {
	MaxMessagesPerMinute int `yaml:"max_messages_per_minute" validate:"min=1"`
	MaxChannelDeletes    int `yaml:"max_channel_deletes" validate:"min=1"`
	MaxRoleDeletes       int `yaml:"max_role_deletes" validate:"min=1"`
	MaxBans              int `yaml:"max_bans" validate:"min=1"`

	SpamWindow        time.Duration `yaml:"spam_window" validate:"min=1s"`
	DestructiveWindow time.Duration `yaml:"destructive_window" validate:"min=1s"`

	AutoBan                 bool          `yaml:"auto_ban"`
	LockdownTimeout         time.Duration `yaml:"lockdown_timeout" validate:"min=1s"`
	LockdownDeletesMessages bool          `yaml:"lockdown_deletes_messages"`

	BackupInterval time.Duration `yaml:"backup_interval" validate:"min=1m"`
	PurgeInterval  time.Duration `yaml:"purge_interval" validate:"min=1s"`

	RestoreRate  float64 `yaml:"restore_rate" validate:"gt=0"`
	RestoreBurst int     `yaml:"restore_burst" validate:"min=1"`

	LogChannel      string        `yaml:"log_channel" validate:"required"`
	WebhookCacheTTL time.Duration `yaml:"webhook_cache_ttl" validate:"min=0s"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxMessagesPerMinute:    10,
		MaxChannelDeletes:       3,
		MaxRoleDeletes:          2,
		MaxBans:                 5,
		SpamWindow:              60 * time.Second,
		DestructiveWindow:       time.Hour,
		AutoBan:                 true,
		LockdownTimeout:         30 * time.Minute,
		LockdownDeletesMessages: true,
		BackupInterval:          6 * time.Hour,
		PurgeInterval:           15 * time.Minute,
		RestoreRate:             5,
		RestoreBurst:            1,
		LogChannel:              "security-logs",
		WebhookCacheTTL:         10 * time.Minute,
	}
}

// Threshold por tipo de accion. Spam se compara con >, el resto con ==.
func (p Policy) Threshold(kind ActionKind) int {
	switch kind {
	case ActionMessageSpam:
		return p.MaxMessagesPerMinute
	case ActionChannelDelete:
		return p.MaxChannelDeletes
	case ActionRoleDelete:
		return p.MaxRoleDeletes
	case ActionMemberBan:
		return p.MaxBans
	}
	return 0
}

func (p Policy) Windows() map[ActionKind]time.Duration {
	return map[ActionKind]time.Duration{
		ActionMessageSpam:   p.SpamWindow,
		ActionChannelDelete: p.DestructiveWindow,
		ActionRoleDelete:    p.DestructiveWindow,
		ActionMemberBan:     p.DestructiveWindow,
	}
}
