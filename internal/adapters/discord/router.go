package discord

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jose-valero/guild-guard-bot/internal/app/service"
)

const commandCooldown = 2 * time.Second

type Router struct {
	s   *discordgo.Session
	log *slog.Logger
	// guildID vacio = comandos globales
	guildID      string
	adminRoleIDs []string

	guard    *service.Guard
	cooldown *userLimiter
	commands map[string]Command
}

func NewRouter(
	s *discordgo.Session,
	log *slog.Logger,
	guildID string,
	adminRoleIDs []string,
	guard *service.Guard,
) *Router {
	r := &Router{
		s:            s,
		log:          log,
		guildID:      guildID,
		adminRoleIDs: adminRoleIDs,
		guard:        guard,
		cooldown:     newUserLimiter(commandCooldown),
	}
	r.commands = r.commandTable()
	return r
}

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return err
		}
	}
	r.log.Info("slash commands registered", "count", len(Commands), "guild", r.guildID)
	return nil
}

func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		r.handleSlashCommand(s, ic)
	})
	r.eventHandlers()
}
