package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"renewly/models"
	"renewly/utils"
)

type StatusController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewStatusController(db *gorm.DB, logger *log.Logger) *StatusController {
	return &StatusController{
		DB:     db,
		Logger: logger,
	}
}

// CreateStatus adds a status to the team's set
func (sc *StatusController) CreateStatus(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	var input struct {
		Name      string `json:"name" validate:"required,max=100"`
		Color     string `json:"color" validate:"omitempty,hexcolor"`
		Category  string `json:"category" validate:"required,oneof=planning active on_hold completed cancelled"`
		SortOrder int    `json:"sort_order"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	status := models.ProjectStatus{
		TeamID:    member.TeamID,
		Name:      input.Name,
		Category:  models.StatusCategory(input.Category),
		SortOrder: input.SortOrder,
	}
	if input.Color != "" {
		status.Color = input.Color
	}

	if err := sc.DB.Create(&status).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create status", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(status))
}

// GetStatuses lists the team's statuses in sort order
func (sc *StatusController) GetStatuses(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	var statuses []models.ProjectStatus
	err := sc.DB.Where("team_id = ?", member.TeamID).
		Order("sort_order ASC, id ASC").
		Find(&statuses).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch statuses", err)
	}

	return c.JSON(utils.SuccessResponse(statuses))
}

// UpdateStatus renames or recolors a status. The category stays fixed:
// transition behavior must not silently change under a rename.
func (sc *StatusController) UpdateStatus(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	statusID := utils.ParseUint(c.Params("statusID"))

	var input struct {
		Name  string `json:"name" validate:"required,max=100"`
		Color string `json:"color" validate:"omitempty,hexcolor"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	updates := map[string]interface{}{"name": input.Name}
	if input.Color != "" {
		updates["color"] = input.Color
	}

	result := sc.DB.Model(&models.ProjectStatus{}).
		Where("id = ? AND team_id = ?", statusID, member.TeamID).
		Updates(updates)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update status", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Status not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Status updated"}))
}

// ReorderStatuses applies a new sort order to the team's statuses
func (sc *StatusController) ReorderStatuses(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	var input struct {
		StatusIDs []uint `json:"status_ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		for order, id := range input.StatusIDs {
			result := tx.Model(&models.ProjectStatus{}).
				Where("id = ? AND team_id = ?", id, member.TeamID).
				Update("sort_order", order)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return utils.NotFound("Status not found in this team")
			}
		}
		return nil
	})
	if err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Statuses reordered"}))
}

// DeleteStatus removes a status. Deletion is rejected while any project
// still references it.
func (sc *StatusController) DeleteStatus(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	statusID := utils.ParseUint(c.Params("statusID"))

	var status models.ProjectStatus
	err := sc.DB.Where("id = ? AND team_id = ?", statusID, member.TeamID).First(&status).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Status not found", nil)
	}

	var referencing int64
	err = sc.DB.Model(&models.Project{}).
		Where("status_id = ?", status.ID).
		Count(&referencing).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check projects", err)
	}
	if referencing > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict,
			"This status is still used by projects, move them to another status first", nil)
	}

	if err := sc.DB.Delete(&status).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete status", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Status deleted"}))
}
