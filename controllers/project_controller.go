package controller

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"renewly/models"
	"renewly/utils"
)

type ProjectController struct {
	DB          *gorm.DB
	Transitions *utils.TransitionManager
	Notifier    *utils.Notifier
	Logger      *log.Logger
}

func NewProjectController(db *gorm.DB, transitions *utils.TransitionManager, notifier *utils.Notifier, logger *log.Logger) *ProjectController {
	return &ProjectController{
		DB:          db,
		Transitions: transitions,
		Notifier:    notifier,
		Logger:      logger,
	}
}

// CreateProject creates a project, records its initial status transition
// and notifies the rest of the team
func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)

	var input struct {
		Name        string     `json:"name" validate:"required,max=200"`
		Description string     `json:"description" validate:"omitempty,max=2000"`
		StatusID    *uint      `json:"status_id"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	project := models.Project{
		TeamID:      member.TeamID,
		Name:        input.Name,
		Description: input.Description,
		DueDate:     input.DueDate,
		CreatedBy:   user.ID,
	}
	if err := pc.DB.Create(&project).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create project", err)
	}

	// Initial transition, when a starting status was chosen
	if input.StatusID != nil {
		if _, err := pc.Transitions.Record(project.ID, nil, *input.StatusID, user.ID, ""); err != nil {
			return utils.RespondError(c, err)
		}
	}

	pc.notifyTeam(member.TeamID, user.ID, utils.NotificationEvent{
		Type:      models.NotificationProjectCreated,
		Title:     "New project",
		Message:   fmt.Sprintf("Project %q was created", project.Name),
		ProjectID: &project.ID,
		ActionURL: fmt.Sprintf("/projects/%d", project.ID),
	})

	pc.DB.Preload("Status").First(&project, project.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(project))
}

// GetProjects lists the team's projects with pagination
func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}

	query := pc.DB.Model(&models.Project{}).Where("team_id = ?", member.TeamID)
	if statusID := c.Query("status_id"); statusID != "" {
		query = query.Where("status_id = ?", utils.ParseUint(statusID))
	}

	var total int64
	query.Count(&total)

	var projects []models.Project
	err := query.Preload("Status").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&projects).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch projects", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  projects,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetProject returns one project with status and tasks
func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	projectID := utils.ParseUint(c.Params("projectID"))

	var project models.Project
	err := pc.DB.Preload("Status").Preload("Tasks").
		Where("id = ? AND team_id = ?", projectID, member.TeamID).
		First(&project).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	return c.JSON(utils.SuccessResponse(project))
}

// UpdateProject edits name/description/due date
func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	projectID := utils.ParseUint(c.Params("projectID"))

	var input struct {
		Name        string     `json:"name" validate:"required,max=200"`
		Description string     `json:"description" validate:"omitempty,max=2000"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	result := pc.DB.Model(&models.Project{}).
		Where("id = ? AND team_id = ?", projectID, member.TeamID).
		Updates(map[string]interface{}{
			"name":        input.Name,
			"description": input.Description,
			"due_date":    input.DueDate,
		})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update project", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Project updated"}))
}

// DeleteProject removes a project and its tasks
func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	projectID := utils.ParseUint(c.Params("projectID"))

	var project models.Project
	err := pc.DB.Where("id = ? AND team_id = ?", projectID, member.TeamID).First(&project).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete project", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Project deleted"}))
}

// ChangeStatus moves the project to a new status. Sensitive transitions
// must carry confirm=true; the response tells the client when to ask.
func (pc *ProjectController) ChangeStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)
	projectID := utils.ParseUint(c.Params("projectID"))

	var count int64
	pc.DB.Model(&models.Project{}).
		Where("id = ? AND team_id = ?", projectID, member.TeamID).
		Count(&count)
	if count == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	var input struct {
		StatusID     uint   `json:"status_id" validate:"required"`
		FromStatusID *uint  `json:"from_status_id"`
		Comment      string `json:"comment" validate:"omitempty,max=1000"`
		Confirm      bool   `json:"confirm"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	needsConfirmation, err := pc.Transitions.RequiresConfirmation(projectID, input.StatusID)
	if err != nil {
		return utils.RespondError(c, err)
	}
	if needsConfirmation && !input.Confirm {
		return c.Status(fiber.StatusPreconditionRequired).JSON(fiber.Map{
			"success":               false,
			"requires_confirmation": true,
			"error":                 "This status change needs confirmation",
		})
	}

	transition, err := pc.Transitions.Record(projectID, input.FromStatusID, input.StatusID, user.ID, input.Comment)
	if err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(transition))
}

// GetStatusHistory returns the project's full transition history in
// creation order
func (pc *ProjectController) GetStatusHistory(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	projectID := utils.ParseUint(c.Params("projectID"))

	var count int64
	pc.DB.Model(&models.Project{}).
		Where("id = ? AND team_id = ?", projectID, member.TeamID).
		Count(&count)
	if count == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	history, err := pc.Transitions.History(projectID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(history))
}

func (pc *ProjectController) notifyTeam(teamID, actorID uint, event utils.NotificationEvent) {
	var memberIDs []uint
	err := pc.DB.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id != ?", teamID, actorID).
		Pluck("user_id", &memberIDs).Error
	if err != nil {
		pc.Logger.Printf("failed to load members for notify: %v", err)
		return
	}
	pc.Notifier.FanOut(memberIDs, event)
}
