package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind identifica que tipo de accion se cuenta en la ventana deslizante.
type ActionKind string

const (
	ActionMessageSpam   ActionKind = "message_spam"
	ActionChannelDelete ActionKind = "channel_delete"
	ActionRoleDelete    ActionKind = "role_delete"
	ActionMemberBan     ActionKind = "member_ban"
)

// Destructive: todo lo que no es spam se atribuye por audit log.
func (k ActionKind) Destructive() bool {
	switch k {
	case ActionChannelDelete, ActionRoleDelete, ActionMemberBan:
		return true
	}
	return false
}

func (k ActionKind) DisplayName() string {
	switch k {
	case ActionMessageSpam:
		return "Spam de mensajes"
	case ActionChannelDelete:
		return "Borrado de canales"
	case ActionRoleDelete:
		return "Borrado de roles"
	case ActionMemberBan:
		return "Baneos masivos"
	default:
		return string(k)
	}
}

// ActorActionKey = un contador (guild, actor, accion).
type ActorActionKey struct {
	GuildID string
	ActorID string
	Kind    ActionKind
}

func (k ActorActionKey) String() string {
	return k.GuildID + ":" + k.ActorID + ":" + string(k.Kind)
}

type ChannelKind string

const (
	ChannelText     ChannelKind = "text"
	ChannelVoice    ChannelKind = "voice"
	ChannelCategory ChannelKind = "category" // solo para resolver ParentID, no se respalda
)

type OverwriteTarget string

const (
	OverwriteRole   OverwriteTarget = "role"
	OverwriteMember OverwriteTarget = "member"
)

type Role struct {
	ID          string
	Name        string
	Permissions int64
	Color       int
	Position    int
	Mentionable bool
	Hoist       bool
	Managed     bool
}

type Overwrite struct {
	TargetID   string
	TargetType OverwriteTarget
	Allow      int64
	Deny       int64
}

type Channel struct {
	ID         string
	Name       string
	Kind       ChannelKind
	Position   int
	ParentID   string
	Topic      string
	NSFW       bool
	Overwrites []Overwrite
}

// Member: RoleIDs en el orden que los entrega la plataforma.
type Member struct {
	ID       string
	Tag      string
	Bot      bool
	RoleIDs  []string
	Nickname string
}

// Snapshot es la foto de lo critico de un guild. Se reemplaza entera, nunca se edita.
type Snapshot struct {
	GuildID  string
	Roles    []Role
	Channels []Channel
	Members  []Member
	TakenAt  time.Time
}

func (s *Snapshot) Role(id string) (Role, bool) {
	if s == nil {
		return Role{}, false
	}
	for _, r := range s.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

func (s *Snapshot) Channel(id string) (Channel, bool) {
	if s == nil {
		return Channel{}, false
	}
	for _, c := range s.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// LockdownState vive mientras dura un lockdown; SavedPermissions es read-only una vez armado.
type LockdownState struct {
	ID               string
	GuildID          string
	Active           bool
	StartedAt        time.Time
	Reason           string
	SavedPermissions map[string]int64
}

// Copy devuelve una copia para exponer fuera del book sin compartir el mapa.
func (l LockdownState) Copy() LockdownState {
	saved := make(map[string]int64, len(l.SavedPermissions))
	for k, v := range l.SavedPermissions {
		saved[k] = v
	}
	l.SavedPermissions = saved
	return l
}

// AuditEntry: la entrada mas reciente del audit log para una accion.
type AuditEntry struct {
	ActorID  string
	ActorTag string
	TargetID string
	Reason   string
}

type Webhook struct {
	ID        string
	ChannelID string
	Name      string
	OwnerID   string
}

type Invite struct {
	Code      string
	ChannelID string
}

type RestoreScope string

const (
	RestoreAll      RestoreScope = "all"
	RestoreRoles    RestoreScope = "roles"
	RestoreChannels RestoreScope = "channels"
)

func ParseRestoreScope(s string) (RestoreScope, error) {
	switch RestoreScope(strings.ToLower(strings.TrimSpace(s))) {
	case RestoreAll, "":
		return RestoreAll, nil
	case RestoreRoles:
		return RestoreRoles, nil
	case RestoreChannels:
		return RestoreChannels, nil
	}
	return "", fmt.Errorf("restore scope invalido: %q", s)
}

func (s RestoreScope) Includes(other RestoreScope) bool {
	return s == RestoreAll || s == other
}

// Status es lo que muestran /status y el endpoint HTTP.
type Status struct {
	GuildID        string    `json:"guild_id"`
	LockdownActive bool      `json:"lockdown_active"`
	LockdownReason string    `json:"lockdown_reason,omitempty"`
	LockdownSince  time.Time `json:"lockdown_since,omitempty"`
	LastBackupSize int       `json:"last_backup_size"`
	BackupChannels int       `json:"backup_channels"`
	BackupMembers  int       `json:"backup_members"`
	BackupTakenAt  time.Time `json:"backup_taken_at,omitempty"`
	AllowListSize  int       `json:"allow_list_size"`
}
