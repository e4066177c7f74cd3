package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"renewly/models"
	"renewly/utils"
)

type TeamController struct {
	DB         *gorm.DB
	Membership *utils.MembershipManager
	Logger     *log.Logger
}

func NewTeamController(db *gorm.DB, membership *utils.MembershipManager, logger *log.Logger) *TeamController {
	return &TeamController{
		DB:         db,
		Membership: membership,
		Logger:     logger,
	}
}

// CreateTeam creates a team with the caller as its super-admin and
// seeds the default status set
func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"omitempty,max=500"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	team := models.Team{
		Name:        input.Name,
		Description: input.Description,
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}

		member := models.TeamMember{
			TeamID:       team.ID,
			UserID:       user.ID,
			Role:         models.RoleAdmin,
			IsSuperAdmin: true,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		statuses := models.DefaultStatuses(team.ID)
		return tx.Create(&statuses).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create team", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team))
}

// GetTeams lists the caller's teams
func (tc *TeamController) GetTeams(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var teams []models.Team
	err := tc.DB.Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ? AND team_members.deleted_at IS NULL", user.ID).
		Find(&teams).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch teams", err)
	}

	return c.JSON(utils.SuccessResponse(teams))
}

// GetTeam returns one team with its members
func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	var team models.Team
	err := tc.DB.Preload("Members.User").First(&team, member.TeamID).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Team not found", nil)
	}

	return c.JSON(utils.SuccessResponse(team))
}

// UpdateTeam edits team name/description (super-admin only)
func (tc *TeamController) UpdateTeam(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	var input struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"omitempty,max=500"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	err := tc.DB.Model(&models.Team{}).Where("id = ?", member.TeamID).
		Updates(map[string]interface{}{
			"name":        input.Name,
			"description": input.Description,
		}).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update team", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Team updated"}))
}

// DeleteTeam deletes the whole team (super-admin only)
func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", member.TeamID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", member.TeamID).Delete(&models.TeamInvitation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Team{}, member.TeamID).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete team", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Team deleted"}))
}

// GetMembers lists team members with their users
func (tc *TeamController) GetMembers(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	var members []models.TeamMember
	err := tc.DB.Preload("User").Where("team_id = ?", member.TeamID).
		Order("is_super_admin DESC, role DESC, created_at ASC").
		Find(&members).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch members", err)
	}

	return c.JSON(utils.SuccessResponse(members))
}

// InviteMember sends a team invitation
func (tc *TeamController) InviteMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)

	var input struct {
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role" validate:"required,oneof=member admin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	invitation, err := tc.Membership.Invite(member.TeamID, user.ID, input.Email, models.Role(input.Role))
	if err != nil {
		return utils.RespondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(invitation))
}

// GetInvitations lists the team's invitations
func (tc *TeamController) GetInvitations(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	var invitations []models.TeamInvitation
	err := tc.DB.Where("team_id = ?", member.TeamID).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitations", err)
	}

	return c.JSON(utils.SuccessResponse(invitations))
}

// CancelInvitation withdraws a pending invitation
func (tc *TeamController) CancelInvitation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)
	invitationID := utils.ParseUint(c.Params("invitationID"))

	if err := tc.Membership.CancelInvitation(member.TeamID, user.ID, invitationID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Invitation cancelled"}))
}

// GetMyInvitations lists pending invitations addressed to the caller
func (tc *TeamController) GetMyInvitations(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var invitations []models.TeamInvitation
	err := tc.DB.Preload("Team").Preload("Inviter").
		Where("email = ? AND status = ?", user.Email, models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitations", err)
	}

	return c.JSON(utils.SuccessResponse(invitations))
}

// AcceptInvitation consumes an invitation token and joins the team
func (tc *TeamController) AcceptInvitation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	member, err := tc.Membership.AcceptInvitation(input.Token, user.ID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(member))
}

// DeclineInvitation rejects an invitation token
func (tc *TeamController) DeclineInvitation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := tc.Membership.DeclineInvitation(input.Token, user.ID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Invitation declined"}))
}

// ChangeMemberRole promotes or demotes a member
func (tc *TeamController) ChangeMemberRole(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)
	targetUserID := utils.ParseUint(c.Params("userID"))

	var input struct {
		Role string `json:"role" validate:"required,oneof=member admin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := tc.Membership.ChangeRole(member.TeamID, user.ID, targetUserID, models.Role(input.Role)); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Role updated"}))
}

// RemoveMember removes another member from the team
func (tc *TeamController) RemoveMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)
	targetUserID := utils.ParseUint(c.Params("userID"))

	if err := tc.Membership.RemoveMember(member.TeamID, user.ID, targetUserID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Member removed"}))
}

// LeaveTeam removes the caller's own membership
func (tc *TeamController) LeaveTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)

	if err := tc.Membership.LeaveTeam(member.TeamID, user.ID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "You left the team"}))
}

// TransferOwnership hands the super-admin flag to an admin
func (tc *TeamController) TransferOwnership(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)

	var input struct {
		NewOwnerID uint `json:"new_owner_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := tc.Membership.TransferOwnership(member.TeamID, user.ID, input.NewOwnerID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Ownership transferred"}))
}
