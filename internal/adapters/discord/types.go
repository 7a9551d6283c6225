package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

type Ctx struct {
	Log     *slog.Logger
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	GuildID string
	UserID  string
	// Args de slash command (por nombre, subcomandos aplanados)
	Args map[string]string
}

type CommandHandler func(ctx context.Context, c *Ctx) error

type Command struct {
	Name        string
	Description string
	// AdminOnly: owner, Administrator, ADMIN_ROLE_IDS o allow-list.
	// Hoy todos los comandos lo llevan.
	AdminOnly bool
	Handler   CommandHandler
}
