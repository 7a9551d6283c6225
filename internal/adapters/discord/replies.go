package discord

import (
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// limite de Discord para Content
const maxContent = 2000

// ephemeral arma la respuesta privada. Los <@id> de la whitelist se muestran
// pero no notifican a nadie.
func ephemeral(content string, embeds ...*discordgo.MessageEmbed) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content:         clipContent(content),
		Embeds:          embeds,
		Flags:           discordgo.MessageFlagsEphemeral,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
}

func clipContent(s string) string {
	if utf8.RuneCountInString(s) <= maxContent {
		return s
	}
	r := []rune(s)
	return string(r[:maxContent-1]) + "…"
}

// la interaccion todavia no tiene respuesta a la que colgar un followup
func isUnknownWebhook(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownWebhook
}

func replyLog(ic *discordgo.InteractionCreate) *slog.Logger {
	log := slog.Default().With("interaction", ic.ID)
	if ic.GuildID != "" {
		log = log.With("guild", ic.GuildID)
	}
	return log
}

func SendEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, msg string) error {
	err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: ephemeral(msg),
	})
	if err != nil {
		replyLog(ic).Warn("respond failed", "err", err)
	}
	return err
}

// Defer efímero: los comandos tocan la API y pueden pasar de 3s
func DeferEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		replyLog(ic).Warn("defer failed", "err", err)
	}
	return err
}

// ReplyEphemeral contesta sobre el defer; si el defer no llego, responde directo.
func ReplyEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) {
	data := ephemeral(content, embeds...)
	_, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content:         data.Content,
		Embeds:          data.Embeds,
		Flags:           data.Flags,
		AllowedMentions: data.AllowedMentions,
	})
	if err == nil {
		return
	}
	if isUnknownWebhook(err) {
		err = s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
		if err == nil {
			return
		}
	}
	replyLog(ic).Warn("reply failed", "err", err)
}
