package discord

import "github.com/bwmarrin/discordgo"

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Latencia del bot",
	},
	{
		Name:        "lockdown",
		Description: "Activa o desactiva el lockdown del servidor",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "action",
				Description: "enable o disable",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "enable", Value: "enable"},
					{Name: "disable", Value: "disable"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "Motivo (queda en el audit log)",
			},
		},
	},
	{
		Name:        "restore",
		Description: "Recrea roles/canales borrados desde el ultimo backup",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "type",
			Description: "Que restaurar",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "all", Value: "all"},
				{Name: "roles", Value: "roles"},
				{Name: "channels", Value: "channels"},
			},
		}},
	},
	{
		Name:        "backup",
		Description: "Toma un backup ahora",
	},
	{
		Name:        "whitelist",
		Description: "Usuarios exentos del anti-nuke",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "action",
				Description: "add, remove o list",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "add", Value: "add"},
					{Name: "remove", Value: "remove"},
					{Name: "list", Value: "list"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Usuario (para add/remove)",
			},
		},
	},
	{
		Name:        "status",
		Description: "Estado de la proteccion del servidor",
	},
}
