package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"renewly/models"
)

func newMembershipManager(db *gorm.DB) *MembershipManager {
	notifier := NewNotifier(db, discardLogger())
	return NewMembershipManager(db, notifier, discardLogger(), false)
}

func TestInviteHappyPath(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)

	invitation, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, invitation.Status)
	assert.NotEmpty(t, invitation.Token)
	assert.Equal(t, owner.ID, invitation.InvitedBy)
	assert.True(t, invitation.ExpiresAt.After(time.Now()))
}

func TestInviteRequiresAdmin(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	plain := createUser(t, db, "plain@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, plain.ID, models.RoleMember)

	_, err := mm.Invite(team.ID, plain.ID, "newcomer@example.com", models.RoleMember)
	assert.True(t, errors.Is(err, ErrForbidden))

	// Outsiders cannot invite either
	outsider := createUser(t, db, "outsider@example.com")
	_, err = mm.Invite(team.ID, outsider.ID, "newcomer@example.com", models.RoleMember)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInviteRejectsBadInput(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)

	_, err := mm.Invite(team.ID, owner.ID, "not-an-email", models.RoleMember)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = mm.Invite(team.ID, owner.ID, "ok@example.com", models.Role("overlord"))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestInviteDuplicatePending(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)

	_, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleAdmin)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestInviteAfterExpiredInvitation(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)

	stale, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.TeamInvitation{}).Where("id = ?", stale.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	// A lapsed pending invitation does not block a fresh one
	fresh, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)
	assert.NotEqual(t, stale.Token, fresh.Token)

	var stored models.TeamInvitation
	require.NoError(t, db.First(&stored, stale.ID).Error)
	assert.Equal(t, models.InvitationExpired, stored.Status)
}

func TestInviteConcurrentDuplicates(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)

	// Two racing invites to the same address: exactly one wins
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
			errs <- err
		}()
	}

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			successes++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected invite error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	var pending int64
	db.Model(&models.TeamInvitation{}).
		Where("team_id = ? AND email = ? AND status = ?",
			team.ID, "newcomer@example.com", models.InvitationPending).
		Count(&pending)
	assert.Equal(t, int64(1), pending)
}

func TestInviteExistingMember(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	mate := createUser(t, db, "mate@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, mate.ID, models.RoleMember)

	_, err := mm.Invite(team.ID, owner.ID, "mate@example.com", models.RoleMember)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestAcceptInvitation(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)
	invitee := createUser(t, db, "newcomer@example.com")

	invitation, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleAdmin)
	require.NoError(t, err)

	member, err := mm.AcceptInvitation(invitation.Token, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, member.TeamID)
	assert.Equal(t, models.RoleAdmin, member.Role)
	assert.False(t, member.IsSuperAdmin)

	var stored models.TeamInvitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.Equal(t, models.InvitationAccepted, stored.Status)

	var user models.User
	require.NoError(t, db.First(&user, invitee.ID).Error)
	assert.True(t, user.OnboardingCompleted)

	// The existing team hears about the join, the newcomer does not
	var ownerCount, inviteeCount int64
	db.Model(&models.Notification{}).Where("user_id = ? AND type = ?",
		owner.ID, models.NotificationMemberJoined).Count(&ownerCount)
	db.Model(&models.Notification{}).Where("user_id = ?", invitee.ID).Count(&inviteeCount)
	assert.Equal(t, int64(1), ownerCount)
	assert.Equal(t, int64(0), inviteeCount)
}

func TestAcceptInvitationTwice(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)
	invitee := createUser(t, db, "newcomer@example.com")

	invitation, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = mm.AcceptInvitation(invitation.Token, invitee.ID)
	require.NoError(t, err)

	// The second consume of the same token fails, exactly one membership
	_, err = mm.AcceptInvitation(invitation.Token, invitee.ID)
	assert.True(t, errors.Is(err, ErrConflict))

	var count int64
	db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, invitee.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAcceptInvitationWrongEmail(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)
	stranger := createUser(t, db, "stranger@example.com")

	invitation, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = mm.AcceptInvitation(invitation.Token, stranger.ID)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestAcceptExpiredInvitation(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)
	invitee := createUser(t, db, "newcomer@example.com")

	invitation, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.TeamInvitation{}).Where("id = ?", invitation.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = mm.AcceptInvitation(invitation.Token, invitee.ID)
	assert.True(t, errors.Is(err, ErrValidation))

	var stored models.TeamInvitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.Equal(t, models.InvitationExpired, stored.Status)
}

func TestDeclineInvitation(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)
	invitee := createUser(t, db, "newcomer@example.com")

	invitation, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, mm.DeclineInvitation(invitation.Token, invitee.ID))

	var stored models.TeamInvitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.Equal(t, models.InvitationRejected, stored.Status)

	// A declined invitation cannot be accepted afterwards
	_, err = mm.AcceptInvitation(invitation.Token, invitee.ID)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestCancelInvitation(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	team := createTeam(t, db, owner.ID)

	invitation, err := mm.Invite(team.ID, owner.ID, "newcomer@example.com", models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, mm.CancelInvitation(team.ID, owner.ID, invitation.ID))

	var stored models.TeamInvitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.Equal(t, models.InvitationCancelled, stored.Status)

	// Cancelling twice fails
	err = mm.CancelInvitation(team.ID, owner.ID, invitation.ID)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestRemoveMember(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	mate := createUser(t, db, "mate@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, mate.ID, models.RoleMember)

	require.NoError(t, mm.RemoveMember(team.ID, owner.ID, mate.ID))

	var count int64
	db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, mate.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	// The removed user is told
	var notified int64
	db.Model(&models.Notification{}).Where("user_id = ? AND type = ?",
		mate.ID, models.NotificationMemberRemoved).Count(&notified)
	assert.Equal(t, int64(1), notified)
}

func TestRemoveMemberHierarchy(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	admin := createUser(t, db, "admin@example.com")
	admin2 := createUser(t, db, "admin2@example.com")
	plain := createUser(t, db, "plain@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, admin.ID, models.RoleAdmin)
	addMember(t, db, team.ID, admin2.ID, models.RoleAdmin)
	addMember(t, db, team.ID, plain.ID, models.RoleMember)

	// Nobody removes the owner, whoever asks
	err := mm.RemoveMember(team.ID, admin.ID, owner.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// Admins cannot remove fellow admins
	err = mm.RemoveMember(team.ID, admin.ID, admin2.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// Plain members remove nobody
	err = mm.RemoveMember(team.ID, plain.ID, admin.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// Self-removal goes through LeaveTeam
	err = mm.RemoveMember(team.ID, admin.ID, admin.ID)
	assert.True(t, errors.Is(err, ErrValidation))

	// The owner removes admins fine
	require.NoError(t, mm.RemoveMember(team.ID, owner.ID, admin2.ID))
}

func TestRemovedMemberCanRejoin(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	mate := createUser(t, db, "mate@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, mate.ID, models.RoleMember)

	require.NoError(t, mm.RemoveMember(team.ID, owner.ID, mate.ID))

	// The removed user can be invited and accepted again: the old
	// membership row must not linger in the (team, user) unique index
	invitation, err := mm.Invite(team.ID, owner.ID, "mate@example.com", models.RoleMember)
	require.NoError(t, err)

	member, err := mm.AcceptInvitation(invitation.Token, mate.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, member.TeamID)

	var count int64
	db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, mate.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLeaverCanRejoin(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	mate := createUser(t, db, "mate@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, mate.ID, models.RoleMember)

	require.NoError(t, mm.LeaveTeam(team.ID, mate.ID))

	invitation, err := mm.Invite(team.ID, owner.ID, "mate@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = mm.AcceptInvitation(invitation.Token, mate.ID)
	require.NoError(t, err)
}

func TestLeaveTeam(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	mate := createUser(t, db, "mate@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, mate.ID, models.RoleMember)

	require.NoError(t, mm.LeaveTeam(team.ID, mate.ID))

	// The owner is pinned until ownership moves
	err := mm.LeaveTeam(team.ID, owner.ID)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestChangeRole(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	mate := createUser(t, db, "mate@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, mate.ID, models.RoleMember)

	require.NoError(t, mm.ChangeRole(team.ID, owner.ID, mate.ID, models.RoleAdmin))

	var member models.TeamMember
	require.NoError(t, db.Where("team_id = ? AND user_id = ?", team.ID, mate.ID).
		First(&member).Error)
	assert.Equal(t, models.RoleAdmin, member.Role)

	var notified int64
	db.Model(&models.Notification{}).Where("user_id = ? AND type = ?",
		mate.ID, models.NotificationRoleChanged).Count(&notified)
	assert.Equal(t, int64(1), notified)

	// The owner's own role is off limits
	err := mm.ChangeRole(team.ID, mate.ID, owner.ID, models.RoleMember)
	assert.True(t, errors.Is(err, ErrForbidden))

	err = mm.ChangeRole(team.ID, owner.ID, owner.ID, models.RoleMember)
	assert.True(t, errors.Is(err, ErrValidation))

	err = mm.ChangeRole(team.ID, owner.ID, mate.ID, models.Role("overlord"))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTransferOwnership(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	admin := createUser(t, db, "admin@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, admin.ID, models.RoleAdmin)

	require.NoError(t, mm.TransferOwnership(team.ID, owner.ID, admin.ID))

	var previous, successor models.TeamMember
	require.NoError(t, db.Where("team_id = ? AND user_id = ?", team.ID, owner.ID).
		First(&previous).Error)
	require.NoError(t, db.Where("team_id = ? AND user_id = ?", team.ID, admin.ID).
		First(&successor).Error)

	assert.True(t, successor.IsSuperAdmin)
	assert.Equal(t, models.RoleAdmin, successor.Role)
	assert.False(t, previous.IsSuperAdmin)
	assert.Equal(t, models.RoleMember, previous.Role)

	var notified int64
	db.Model(&models.Notification{}).Where("user_id = ? AND type = ?",
		admin.ID, models.NotificationOwnershipTransferred).Count(&notified)
	assert.Equal(t, int64(1), notified)

	// The previous owner lost the power to transfer
	err := mm.TransferOwnership(team.ID, owner.ID, admin.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// And can finally leave
	require.NoError(t, mm.LeaveTeam(team.ID, owner.ID))
}

func TestTransferOwnershipGuards(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	owner := createUser(t, db, "owner@example.com")
	plain := createUser(t, db, "plain@example.com")
	admin := createUser(t, db, "admin@example.com")
	team := createTeam(t, db, owner.ID)
	addMember(t, db, team.ID, plain.ID, models.RoleMember)
	addMember(t, db, team.ID, admin.ID, models.RoleAdmin)

	// Only to admins
	err := mm.TransferOwnership(team.ID, owner.ID, plain.ID)
	assert.True(t, errors.Is(err, ErrValidation))

	// Not to yourself
	err = mm.TransferOwnership(team.ID, owner.ID, owner.ID)
	assert.True(t, errors.Is(err, ErrValidation))

	// Only by the owner
	err = mm.TransferOwnership(team.ID, admin.ID, plain.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// Not to outsiders
	outsider := createUser(t, db, "outsider@example.com")
	err = mm.TransferOwnership(team.ID, owner.ID, outsider.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	// Nothing changed along the way
	var member models.TeamMember
	require.NoError(t, db.Where("team_id = ? AND user_id = ?", team.ID, owner.ID).
		First(&member).Error)
	assert.True(t, member.IsSuperAdmin)
}

// Full lifecycle: invite, accept, promote, hand over, leave.
func TestMembershipLifecycle(t *testing.T) {
	db := openTestDB(t)
	mm := newMembershipManager(db)

	founder := createUser(t, db, "founder@example.com")
	hire := createUser(t, db, "hire@example.com")
	team := createTeam(t, db, founder.ID)

	invitation, err := mm.Invite(team.ID, founder.ID, "hire@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = mm.AcceptInvitation(invitation.Token, hire.ID)
	require.NoError(t, err)

	require.NoError(t, mm.ChangeRole(team.ID, founder.ID, hire.ID, models.RoleAdmin))
	require.NoError(t, mm.TransferOwnership(team.ID, founder.ID, hire.ID))
	require.NoError(t, mm.LeaveTeam(team.ID, founder.ID))

	// Exactly one member remains and they own the team
	var members []models.TeamMember
	require.NoError(t, db.Where("team_id = ?", team.ID).Find(&members).Error)
	require.Len(t, members, 1)
	assert.Equal(t, hire.ID, members[0].UserID)
	assert.True(t, members[0].IsSuperAdmin)
}
