package discord

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

var reMention = regexp.MustCompile(`<@!?(\d+)>`)

func parseIDs(raw string) []string {
	ids := []string{}
	for _, tok := range strings.Fields(raw) {
		if m := reMention.FindStringSubmatch(tok); len(m) == 2 {
			ids = append(ids, m[1])
			continue
		}
		allDigits := true
		for _, r := range tok {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			ids = append(ids, tok)
		}
	}
	return ids
}

// collectArgs aplana opciones y subcomandos a name -> valor.
func collectArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	out := map[string]string{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			out["_sub"] = o.Name
			for k, v := range collectArgs(o.Options) {
				out[k] = v
			}
		default:
			out[o.Name] = fmt.Sprint(o.Value)
		}
	}
	return out
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

// userError traduce errores del guard a un mensaje para el usuario.
func userError(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "⚠️ El bot no tiene permisos suficientes (¿su rol está por debajo?)."
	case errors.Is(err, domain.ErrNoSnapshot):
		return "⚠️ No hay backup para este servidor. Usa `/backup` primero."
	case errors.Is(err, domain.ErrLockdownActive):
		return "⚠️ El servidor está en lockdown; desactívalo antes de hacer un backup."
	case errors.Is(err, domain.ErrNotLocked):
		return "ℹ️ El servidor no está en lockdown."
	}
	return "⚠️ Error: " + err.Error()
}

const maxReportLines = 10

func formatReport(rep domain.Report) string {
	var b strings.Builder
	b.WriteString(rep.Summary())
	failed := rep.Failed()
	for i, o := range failed {
		if i == maxReportLines {
			fmt.Fprintf(&b, "\n… y %d más", len(failed)-maxReportLines)
			break
		}
		name := o.Name
		if name == "" {
			name = o.ID
		}
		fmt.Fprintf(&b, "\n• %s %s: %v", o.Kind, name, o.Err)
	}
	return b.String()
}

func statusEmbed(st domain.Status, pol domain.Policy) *discordgo.MessageEmbed {
	lock := "🟢 Normal"
	color := 0x2ecc71
	if st.LockdownActive {
		lock = fmt.Sprintf("🔴 Lockdown desde <t:%d:R>\n%s", st.LockdownSince.Unix(), st.LockdownReason)
		color = 0xe74c3c
	}
	backup := "Sin backup"
	if !st.BackupTakenAt.IsZero() {
		backup = fmt.Sprintf("%d roles, %d canales, %d miembros\n<t:%d:R>", st.LastBackupSize, st.BackupChannels, st.BackupMembers, st.BackupTakenAt.Unix())
	}
	limits := fmt.Sprintf("Mensajes/min: %d\nCanales borrados: %d\nRoles borrados: %d\nBaneos: %d",
		pol.MaxMessagesPerMinute, pol.MaxChannelDeletes, pol.MaxRoleDeletes, pol.MaxBans)

	return &discordgo.MessageEmbed{
		Title: "🛡️ Estado de la protección",
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Servidor", Value: lock},
			{Name: "Backup", Value: backup, Inline: true},
			{Name: "Límites", Value: limits, Inline: true},
			{Name: "Whitelist", Value: fmt.Sprintf("%d usuarios", st.AllowListSize), Inline: true},
		},
	}
}
