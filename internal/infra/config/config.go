package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string   `validate:"required"`
	DiscordGuild string   // opcional: registra los comandos solo en ese guild
	OwnerID      string   // siempre exento y siempre admin
	AdminRoleIDs []string // roles extra que pueden usar los comandos
	AllowIDs     []string // allow-list inicial

	HTTPAddr    string // opcional, default :8080
	StatusToken string // Bearer para /status y /incidents

	DatabaseURL     string // vacío = sin journal de incidentes
	AlertWebhookURL string `validate:"omitempty,url"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	Policy domain.Policy
}

// Load lee env (y POLICY_FILE si está) y valida todo junto.
func Load() (Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		DiscordToken:    get("DISCORD_BOT_TOKEN", ""),
		DiscordGuild:    get("DISCORD_GUILD_ID", ""),
		OwnerID:         get("OWNER_ID", ""),
		AdminRoleIDs:    splitList(get("ADMIN_ROLE_IDS", "")),
		AllowIDs:        splitList(get("ALLOWLIST_IDS", "")),
		HTTPAddr:        get("HTTP_ADDR", ":8080"),
		StatusToken:     get("STATUS_TOKEN", ""),
		DatabaseURL:     get("DATABASE_URL", ""),
		AlertWebhookURL: get("ALERT_WEBHOOK_URL", ""),
		LogLevel:        strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(get("LOG_FORMAT", "text")),
		Policy:          domain.DefaultPolicy(),
	}

	if path := get("POLICY_FILE", ""); path != "" {
		pol, err := LoadPolicy(path)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = pol
	}
	if ch := get("LOG_CHANNEL", ""); ch != "" {
		cfg.Policy.LogChannel = ch
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate también baja a Policy (validator recorre structs anidados).
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoadPolicy pisa los defaults solo con las claves presentes en el YAML.
func LoadPolicy(path string) (domain.Policy, error) {
	pol := domain.DefaultPolicy()
	f, err := os.Open(path)
	if err != nil {
		return pol, fmt.Errorf("policy file: %w", err)
	}
	defer f.Close()
	return decodePolicy(f, pol)
}

func decodePolicy(r io.Reader, pol domain.Policy) (domain.Policy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pol); err != nil && err != io.EOF {
		return pol, fmt.Errorf("policy file: %w", err)
	}
	return pol, nil
}

// Logger arma el slog según LOG_LEVEL / LOG_FORMAT.
func (c Config) Logger(w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch c.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, p)
	}
	return out
}
