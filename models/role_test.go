package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, AccessLevelMember, AccessLevel(RoleMember, false))
	assert.Equal(t, AccessLevelAdmin, AccessLevel(RoleAdmin, false))
	assert.Equal(t, AccessLevelSuperAdmin, AccessLevel(RoleAdmin, true))

	// The super-admin flag dominates whatever role the row carries
	assert.Equal(t, AccessLevelSuperAdmin, AccessLevel(RoleMember, true))

	// Unknown roles collapse to member
	assert.Equal(t, AccessLevelMember, AccessLevel(Role("intern"), false))
}

func TestHasCapabilityTiers(t *testing.T) {
	base := []Capability{
		CapViewProjects, CapCreateTasks, CapEditOwnTasks,
		CapCommentTasks, CapViewMembers, CapLeaveTeam,
	}
	admin := []Capability{
		CapCreateProjects, CapEditProjects, CapDeleteProjects,
		CapManageStatuses, CapChangeStatus, CapInviteMembers,
		CapRemoveMembers, CapManageRoles,
	}
	super := []Capability{
		CapDeleteTeam, CapTransferOwnership, CapEditTeamSettings,
	}

	for _, cap := range base {
		assert.True(t, HasCapability(RoleMember, false, cap), "member should hold %s", cap)
		assert.True(t, HasCapability(RoleAdmin, false, cap), "admin should hold %s", cap)
		assert.True(t, HasCapability(RoleAdmin, true, cap), "super-admin should hold %s", cap)
	}

	for _, cap := range admin {
		assert.False(t, HasCapability(RoleMember, false, cap), "member should not hold %s", cap)
		assert.True(t, HasCapability(RoleAdmin, false, cap), "admin should hold %s", cap)
		assert.True(t, HasCapability(RoleAdmin, true, cap), "super-admin should hold %s", cap)
	}

	for _, cap := range super {
		assert.False(t, HasCapability(RoleMember, false, cap), "member should not hold %s", cap)
		assert.False(t, HasCapability(RoleAdmin, false, cap), "admin should not hold %s", cap)
		assert.True(t, HasCapability(RoleAdmin, true, cap), "super-admin should hold %s", cap)
	}
}

func TestHasCapabilityUnknown(t *testing.T) {
	assert.False(t, HasCapability(RoleAdmin, true, Capability("launch_rockets")))
}

func TestCanManageRole(t *testing.T) {
	// Super-admin manages everyone
	assert.True(t, CanManageRole(RoleAdmin, true, RoleMember, false))
	assert.True(t, CanManageRole(RoleAdmin, true, RoleAdmin, false))

	// Nobody manages the super-admin
	assert.False(t, CanManageRole(RoleAdmin, false, RoleAdmin, true))
	assert.False(t, CanManageRole(RoleMember, false, RoleAdmin, true))

	// Admins manage plain members only
	assert.True(t, CanManageRole(RoleAdmin, false, RoleMember, false))
	assert.False(t, CanManageRole(RoleAdmin, false, RoleAdmin, false))

	// Members manage nobody
	assert.False(t, CanManageRole(RoleMember, false, RoleMember, false))
	assert.False(t, CanManageRole(RoleMember, false, RoleAdmin, false))
}
