package domain

import "time"

// Eventos de entrada ya traducidos desde el gateway.

type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	AuthorTag string
	AuthorBot bool
	WebhookID string
	Content   string
	At        time.Time
}

type ChannelDeleteEvent struct {
	GuildID   string
	ChannelID string
	Name      string
	At        time.Time
}

type RoleDeleteEvent struct {
	GuildID string
	RoleID  string
	Name    string
	At      time.Time
}

type BanAddEvent struct {
	GuildID string
	UserID  string
	UserTag string
	At      time.Time
}

type MemberAddEvent struct {
	GuildID string
	Member  Member
	At      time.Time
}

type Decision string

const (
	DecisionNone           Decision = "none"
	DecisionExempt         Decision = "exempt"
	DecisionUnattributable Decision = "unattributable"
	DecisionWarn           Decision = "warn"
	DecisionBan            Decision = "ban"
	DecisionEscalate       Decision = "escalate"
	DecisionDeleteMessage  Decision = "delete_message"
	DecisionDeleteWebhook  Decision = "delete_webhook"
)

// Verdict resume que decidio el detector para un evento.
type Verdict struct {
	Decision  Decision
	Kind      ActionKind
	ActorID   string
	Count     int
	Threshold int
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert es lo que se loguea, se manda al canal de logs y al journal.
type Alert struct {
	ID       string
	GuildID  string
	Severity Severity
	Kind     string
	ActorID  string
	Message  string
	Affected []string
	At       time.Time
}
