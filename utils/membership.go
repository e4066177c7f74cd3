package utils

import (
	"fmt"
	"log"
	"time"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"renewly/models"
)

// invitations stay valid for a week
const invitationTTL = 7 * 24 * time.Hour

// MembershipManager owns the invitation -> acceptance -> membership ->
// role change -> removal/ownership-transfer progression for a team.
type MembershipManager struct {
	DB          *gorm.DB
	Notifier    *Notifier
	Logger      *log.Logger
	MailEnabled bool
}

func NewMembershipManager(db *gorm.DB, notifier *Notifier, logger *log.Logger, mailEnabled bool) *MembershipManager {
	return &MembershipManager{
		DB:          db,
		Notifier:    notifier,
		Logger:      logger,
		MailEnabled: mailEnabled,
	}
}

// Invite creates a pending invitation and emails the invitee. At most
// one pending invitation may exist per (team, email).
func (mm *MembershipManager) Invite(teamID, actorID uint, email string, role models.Role) (*models.TeamInvitation, error) {
	actor, err := mm.member(teamID, actorID)
	if err != nil {
		return nil, err
	}
	if !models.HasCapability(actor.Role, actor.IsSuperAdmin, models.CapInviteMembers) {
		return nil, Forbidden("You don't have permission to invite members")
	}

	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, Invalid("Invitee email address is not valid")
	}
	if role != models.RoleMember && role != models.RoleAdmin {
		return nil, Invalid("Role must be member or admin")
	}

	var team models.Team
	var invitation models.TeamInvitation

	// Check and insert under a team row lock so two concurrent invites to
	// the same address cannot both pass the pending count
	err = mm.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&team, teamID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("Team not found")
			}
			return Dependency("Failed to load team", err)
		}

		// Already on the team?
		var existingMembers int64
		err = tx.Model(&models.TeamMember{}).
			Joins("JOIN users ON users.id = team_members.user_id").
			Where("team_members.team_id = ? AND users.email = ?", teamID, email).
			Count(&existingMembers).Error
		if err != nil {
			return Dependency("Failed to check existing members", err)
		}
		if existingMembers > 0 {
			return Conflict("This person is already a member of the team")
		}

		// Expire stale pending invitations before the duplicate check so a
		// lapsed invite doesn't block a fresh one
		tx.Model(&models.TeamInvitation{}).
			Where("team_id = ? AND email = ? AND status = ? AND expires_at < ?",
				teamID, email, models.InvitationPending, time.Now()).
			Update("status", models.InvitationExpired)

		var pending int64
		err = tx.Model(&models.TeamInvitation{}).
			Where("team_id = ? AND email = ? AND status = ?", teamID, email, models.InvitationPending).
			Count(&pending).Error
		if err != nil {
			return Dependency("Failed to check pending invitations", err)
		}
		if pending > 0 {
			return Conflict("This person has already been invited")
		}

		token, err := GenerateInviteToken()
		if err != nil {
			return Dependency("Failed to generate invitation token", err)
		}

		invitation = models.TeamInvitation{
			TeamID:    teamID,
			Email:     email,
			Role:      role,
			InvitedBy: actorID,
			Token:     token,
			Status:    models.InvitationPending,
			ExpiresAt: time.Now().Add(invitationTTL),
		}
		if err := tx.Create(&invitation).Error; err != nil {
			return Dependency("Failed to create invitation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if mm.MailEnabled {
		inviterName := actor.User.Email
		if actor.User.Name != nil {
			inviterName = *actor.User.Name
		}
		if err := SendInvitationEmail(email, team.Name, inviterName, string(role), invitation.Token, invitation.ExpiresAt); err != nil {
			// The invitation stands; the link can be resent
			LogError("invitation_email_failed", err, map[string]interface{}{
				"team_id": teamID,
				"email":   email,
			})
		}
	}

	return &invitation, nil
}

// AcceptInvitation consumes a pending invitation and creates the
// membership in one transaction: validate token and email match, create
// the member row, mark the invitation accepted, flag onboarding done.
// Accepting the same token twice fails on the second call.
func (mm *MembershipManager) AcceptInvitation(token string, userID uint) (*models.TeamMember, error) {
	var member models.TeamMember
	var teamID uint

	err := mm.DB.Transaction(func(tx *gorm.DB) error {
		var invitation models.TeamInvitation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", token).First(&invitation).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("Invitation not found")
			}
			return Dependency("Failed to load invitation", err)
		}

		switch invitation.Status {
		case models.InvitationPending:
			// proceed
		case models.InvitationAccepted:
			return Conflict("This invitation has already been accepted")
		default:
			return Conflict("This invitation is no longer valid")
		}

		if invitation.IsExpired() {
			tx.Model(&invitation).Update("status", models.InvitationExpired)
			return Invalid("This invitation has expired")
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("User not found")
			}
			return Dependency("Failed to load user", err)
		}
		if user.Email != invitation.Email {
			return Forbidden("This invitation was issued to a different email address")
		}

		var existing int64
		err = tx.Model(&models.TeamMember{}).
			Where("team_id = ? AND user_id = ?", invitation.TeamID, userID).
			Count(&existing).Error
		if err != nil {
			return Dependency("Failed to check membership", err)
		}
		if existing > 0 {
			return Conflict("You are already a member of this team")
		}

		member = models.TeamMember{
			TeamID: invitation.TeamID,
			UserID: userID,
			Role:   invitation.Role,
		}
		if err := tx.Create(&member).Error; err != nil {
			return Dependency("Failed to create membership", err)
		}

		if err := tx.Model(&invitation).Update("status", models.InvitationAccepted).Error; err != nil {
			return Dependency("Failed to update invitation", err)
		}

		if err := tx.Model(&user).Update("onboarding_completed", true).Error; err != nil {
			return Dependency("Failed to update onboarding state", err)
		}

		teamID = invitation.TeamID
		return nil
	})
	if err != nil {
		return nil, err
	}

	mm.notifyTeam(teamID, userID, NotificationEvent{
		Type:    models.NotificationMemberJoined,
		Title:   "New team member",
		Message: "A new member joined your team",
	})

	return &member, nil
}

// DeclineInvitation marks a pending invitation as rejected
func (mm *MembershipManager) DeclineInvitation(token string, userID uint) error {
	return mm.DB.Transaction(func(tx *gorm.DB) error {
		var invitation models.TeamInvitation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", token).First(&invitation).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("Invitation not found")
			}
			return Dependency("Failed to load invitation", err)
		}
		if invitation.Status != models.InvitationPending {
			return Conflict("This invitation is no longer valid")
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return Dependency("Failed to load user", err)
		}
		if user.Email != invitation.Email {
			return Forbidden("This invitation was issued to a different email address")
		}

		return tx.Model(&invitation).Update("status", models.InvitationRejected).Error
	})
}

// CancelInvitation withdraws a pending invitation
func (mm *MembershipManager) CancelInvitation(teamID, actorID, invitationID uint) error {
	actor, err := mm.member(teamID, actorID)
	if err != nil {
		return err
	}
	if !models.HasCapability(actor.Role, actor.IsSuperAdmin, models.CapInviteMembers) {
		return Forbidden("You don't have permission to manage invitations")
	}

	var invitation models.TeamInvitation
	err = mm.DB.Where("id = ? AND team_id = ?", invitationID, teamID).First(&invitation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return NotFound("Invitation not found")
		}
		return Dependency("Failed to load invitation", err)
	}
	if invitation.Status != models.InvitationPending {
		return Conflict("Only pending invitations can be cancelled")
	}

	return mm.DB.Model(&invitation).Update("status", models.InvitationCancelled).Error
}

// RemoveMember removes the target from the team. Self-removal goes
// through LeaveTeam; the super-admin can only go through ownership
// transfer.
func (mm *MembershipManager) RemoveMember(teamID, actorID, targetUserID uint) error {
	if actorID == targetUserID {
		return Invalid("You cannot remove yourself, leave the team instead")
	}

	actor, err := mm.member(teamID, actorID)
	if err != nil {
		return err
	}
	target, err := mm.member(teamID, targetUserID)
	if err != nil {
		return err
	}

	if target.IsSuperAdmin {
		return Forbidden("The team owner cannot be removed, transfer ownership first")
	}
	if !models.CanManageRole(actor.Role, actor.IsSuperAdmin, target.Role, target.IsSuperAdmin) {
		return Forbidden("You don't have permission to remove this member")
	}

	// Hard delete: a soft-deleted row would keep holding the (team, user)
	// unique index and block the user from ever rejoining
	if err := mm.DB.Unscoped().Delete(&models.TeamMember{}, target.ID).Error; err != nil {
		return Dependency("Failed to remove member", err)
	}

	mm.Notifier.Create(targetUserID, NotificationEvent{
		Type:    models.NotificationMemberRemoved,
		Title:   "Removed from team",
		Message: "You have been removed from a team",
	})

	return nil
}

// LeaveTeam removes the caller's own membership. The super-admin must
// transfer ownership before leaving.
func (mm *MembershipManager) LeaveTeam(teamID, userID uint) error {
	member, err := mm.member(teamID, userID)
	if err != nil {
		return err
	}
	if member.IsSuperAdmin {
		return Forbidden("Transfer ownership before leaving the team")
	}

	// Hard delete, same as RemoveMember: leave no tombstone in the
	// (team, user) unique index
	if err := mm.DB.Unscoped().Delete(&models.TeamMember{}, member.ID).Error; err != nil {
		return Dependency("Failed to leave team", err)
	}
	return nil
}

// ChangeRole sets the target's role, gated by the management hierarchy
func (mm *MembershipManager) ChangeRole(teamID, actorID, targetUserID uint, newRole models.Role) error {
	if newRole != models.RoleMember && newRole != models.RoleAdmin {
		return Invalid("Role must be member or admin")
	}
	if actorID == targetUserID {
		return Invalid("You cannot change your own role")
	}

	actor, err := mm.member(teamID, actorID)
	if err != nil {
		return err
	}
	target, err := mm.member(teamID, targetUserID)
	if err != nil {
		return err
	}

	if target.IsSuperAdmin {
		return Forbidden("The team owner's role cannot be changed")
	}
	if !models.CanManageRole(actor.Role, actor.IsSuperAdmin, target.Role, target.IsSuperAdmin) {
		return Forbidden("You don't have permission to manage this member")
	}

	if err := mm.DB.Model(&models.TeamMember{}).Where("id = ?", target.ID).
		Update("role", newRole).Error; err != nil {
		return Dependency("Failed to change role", err)
	}

	mm.Notifier.Create(targetUserID, NotificationEvent{
		Type:    models.NotificationRoleChanged,
		Title:   "Role changed",
		Message: fmt.Sprintf("Your team role is now %s", newRole),
	})

	return nil
}

// TransferOwnership atomically promotes the new owner to super-admin and
// demotes the current owner to a plain member. The new owner must
// already hold admin.
func (mm *MembershipManager) TransferOwnership(teamID, currentOwnerID, newOwnerID uint) error {
	if currentOwnerID == newOwnerID {
		return Invalid("You already own this team")
	}

	err := mm.DB.Transaction(func(tx *gorm.DB) error {
		var owner models.TeamMember
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("team_id = ? AND user_id = ?", teamID, currentOwnerID).
			First(&owner).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("You are not a member of this team")
			}
			return Dependency("Failed to load membership", err)
		}
		if !owner.IsSuperAdmin {
			return Forbidden("Only the team owner can transfer ownership")
		}

		var successor models.TeamMember
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("team_id = ? AND user_id = ?", teamID, newOwnerID).
			First(&successor).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("The chosen member is not on this team")
			}
			return Dependency("Failed to load membership", err)
		}
		if successor.Role != models.RoleAdmin {
			return Invalid("Ownership can only be transferred to an admin")
		}

		err = tx.Model(&models.TeamMember{}).Where("id = ?", successor.ID).
			Updates(map[string]interface{}{"is_super_admin": true, "role": models.RoleAdmin}).Error
		if err != nil {
			return Dependency("Failed to promote new owner", err)
		}

		err = tx.Model(&models.TeamMember{}).Where("id = ?", owner.ID).
			Updates(map[string]interface{}{"is_super_admin": false, "role": models.RoleMember}).Error
		if err != nil {
			return Dependency("Failed to demote previous owner", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	mm.Notifier.Create(newOwnerID, NotificationEvent{
		Type:    models.NotificationOwnershipTransferred,
		Title:   "You are now the team owner",
		Message: "Team ownership has been transferred to you",
	})

	if mm.MailEnabled {
		mm.sendOwnershipMail(teamID, currentOwnerID, newOwnerID)
	}

	return nil
}

// member loads a membership row with its user preloaded
func (mm *MembershipManager) member(teamID, userID uint) (*models.TeamMember, error) {
	var member models.TeamMember
	err := mm.DB.Preload("User").
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFound("Not a member of this team")
		}
		return nil, Dependency("Failed to load membership", err)
	}
	return &member, nil
}

func (mm *MembershipManager) notifyTeam(teamID, actorID uint, event NotificationEvent) {
	var memberIDs []uint
	err := mm.DB.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id != ?", teamID, actorID).
		Pluck("user_id", &memberIDs).Error
	if err != nil {
		mm.Logger.Printf("failed to load members for notify: %v", err)
		return
	}
	mm.Notifier.FanOut(memberIDs, event)
}

func (mm *MembershipManager) sendOwnershipMail(teamID, previousOwnerID, newOwnerID uint) {
	var team models.Team
	if err := mm.DB.First(&team, teamID).Error; err != nil {
		return
	}
	var newOwner, previous models.User
	if err := mm.DB.First(&newOwner, newOwnerID).Error; err != nil {
		return
	}
	if err := mm.DB.First(&previous, previousOwnerID).Error; err != nil {
		return
	}
	previousName := previous.Email
	if previous.Name != nil {
		previousName = *previous.Name
	}
	if err := SendOwnershipTransferEmail(newOwner.Email, team.Name, previousName); err != nil {
		LogError("ownership_email_failed", err, map[string]interface{}{
			"team_id": teamID,
		})
	}
}
