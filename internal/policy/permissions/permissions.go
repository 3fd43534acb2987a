package permissions

import api "github.com/OvyFlash/telegram-bot-api"

// IsModerator reports whether member is exempt from language checks and may
// run admin commands.
func IsModerator(member *api.ChatMember) bool {
	if member == nil || member.User == nil {
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

// CanRestrict reports whether member is able to mute other members.
func CanRestrict(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	if member.IsCreator() {
		return true
	}
	return member.IsAdministrator() && member.CanRestrictMembers
}
