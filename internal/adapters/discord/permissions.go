package discord

import (
	"github.com/bwmarrin/discordgo"
)

type authInput struct {
	OwnerID      string
	UserID       string
	MemberRoles  []string
	GuildRoles   []*discordgo.Role
	AdminRoleIDs []string
	Allowed      bool
}

// authorized: owner, bit Administrator, rol admin configurado o allow-list.
func authorized(in authInput) bool {
	if in.UserID == "" {
		return false
	}
	if in.OwnerID != "" && in.UserID == in.OwnerID {
		return true
	}
	if in.Allowed {
		return true
	}

	has := make(map[string]struct{}, len(in.MemberRoles))
	for _, rid := range in.MemberRoles {
		has[rid] = struct{}{}
	}

	var perms int64
	for _, ro := range in.GuildRoles {
		if ro == nil {
			continue
		}
		if _, ok := has[ro.ID]; ok {
			perms |= ro.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}

	// Roles explícitos del bot
	for _, want := range in.AdminRoleIDs {
		if _, ok := has[want]; ok {
			return true
		}
	}
	return false
}

func (r *Router) requireAdminOrRoles(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	in := authInput{
		UserID:       interactionUserID(ic),
		AdminRoleIDs: r.adminRoleIDs,
		Allowed:      r.guard.Allowed(interactionUserID(ic)),
	}
	if g, _ := s.State.Guild(ic.GuildID); g != nil {
		in.OwnerID = g.OwnerID
		in.GuildRoles = g.Roles
	}
	if ic.Member != nil {
		in.MemberRoles = ic.Member.Roles
	}
	if len(in.GuildRoles) == 0 {
		in.GuildRoles, _ = s.GuildRoles(ic.GuildID)
	}

	if authorized(in) {
		return true
	}
	ReplyEphemeral(s, ic, "🔒 No tienes permisos para esta acción.")
	return false
}
