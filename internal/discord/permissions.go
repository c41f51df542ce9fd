package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/daedalus-fleet/elsie/internal/roleplay"
)

// PermissionChecker gates [DGM] scene control tags on a Discord role.
type PermissionChecker struct {
	dgmRoleID string
}

// NewPermissionChecker creates a checker. An empty role ID allows everyone.
func NewPermissionChecker(dgmRoleID string) *PermissionChecker {
	return &PermissionChecker{dgmRoleID: dgmRoleID}
}

// IsDGM reports whether the message author may use [DGM] tags.
func (p *PermissionChecker) IsDGM(m *discordgo.MessageCreate) bool {
	if p.dgmRoleID == "" {
		return true
	}
	if m.Member == nil {
		// DMs carry no member; role-gated DGM tags are guild-only.
		return false
	}
	for _, r := range m.Member.Roles {
		if r == p.dgmRoleID {
			return true
		}
	}
	return false
}

// isDGMTagged reports whether content opens with a [DGM] control tag.
func isDGMTagged(content string) bool {
	return roleplay.ParseDGM(content).Action != roleplay.DGMNone
}
