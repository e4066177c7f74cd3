package models

// Role is the membership role a user holds within a team. Super-admin is
// not a role of its own: it is the IsSuperAdmin flag on top of a role.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Capability names a single permission check
type Capability string

const (
	// Base capabilities - available to every member
	CapViewProjects    Capability = "view_projects"
	CapCreateTasks     Capability = "create_tasks"
	CapEditOwnTasks    Capability = "edit_own_tasks"
	CapCommentTasks    Capability = "comment_tasks"
	CapViewMembers     Capability = "view_members"
	CapLeaveTeam       Capability = "leave_team"

	// Admin capabilities
	CapCreateProjects  Capability = "create_projects"
	CapEditProjects    Capability = "edit_projects"
	CapDeleteProjects  Capability = "delete_projects"
	CapManageStatuses  Capability = "manage_statuses"
	CapChangeStatus    Capability = "change_project_status"
	CapInviteMembers   Capability = "invite_members"
	CapRemoveMembers   Capability = "remove_members"
	CapManageRoles     Capability = "manage_roles"

	// Super-admin capabilities
	CapDeleteTeam        Capability = "delete_team"
	CapTransferOwnership Capability = "transfer_ownership"
	CapEditTeamSettings  Capability = "edit_team_settings"
)

var baseCapabilities = map[Capability]struct{}{
	CapViewProjects: {},
	CapCreateTasks:  {},
	CapEditOwnTasks: {},
	CapCommentTasks: {},
	CapViewMembers:  {},
	CapLeaveTeam:    {},
}

var adminCapabilities = map[Capability]struct{}{
	CapCreateProjects: {},
	CapEditProjects:   {},
	CapDeleteProjects: {},
	CapManageStatuses: {},
	CapChangeStatus:   {},
	CapInviteMembers:  {},
	CapRemoveMembers:  {},
	CapManageRoles:    {},
}

var superAdminCapabilities = map[Capability]struct{}{
	CapDeleteTeam:        {},
	CapTransferOwnership: {},
	CapEditTeamSettings:  {},
}

// Access levels, strictly ordered
const (
	AccessLevelMember     = 1
	AccessLevelAdmin      = 2
	AccessLevelSuperAdmin = 3
)

// AccessLevel maps a (role, super-admin flag) pair to its numeric level.
// Unknown roles collapse to member.
func AccessLevel(role Role, isSuperAdmin bool) int {
	if isSuperAdmin {
		return AccessLevelSuperAdmin
	}
	if role == RoleAdmin {
		return AccessLevelAdmin
	}
	return AccessLevelMember
}

// HasCapability reports whether the given role may perform the capability.
// Base capabilities are open to everyone, admin capabilities require
// admin-or-above, super-admin capabilities require the super-admin flag.
func HasCapability(role Role, isSuperAdmin bool, cap Capability) bool {
	if _, ok := baseCapabilities[cap]; ok {
		return true
	}
	if _, ok := adminCapabilities[cap]; ok {
		return AccessLevel(role, isSuperAdmin) >= AccessLevelAdmin
	}
	if _, ok := superAdminCapabilities[cap]; ok {
		return isSuperAdmin
	}
	return false
}

// CanManageRole reports whether the actor may manage (promote, demote,
// remove) the target. Management is strictly hierarchical: admins manage
// plain members only, never other admins and never the super-admin.
func CanManageRole(actorRole Role, actorSuper bool, targetRole Role, targetSuper bool) bool {
	if actorSuper {
		return true
	}
	if targetSuper {
		return false
	}
	if actorRole == RoleAdmin {
		return targetRole == RoleMember
	}
	return false
}
