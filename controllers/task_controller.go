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

type TaskController struct {
	DB       *gorm.DB
	Notifier *utils.Notifier
	Logger   *log.Logger
}

func NewTaskController(db *gorm.DB, notifier *utils.Notifier, logger *log.Logger) *TaskController {
	return &TaskController{
		DB:       db,
		Notifier: notifier,
		Logger:   logger,
	}
}

type customFieldInput struct {
	Name        string     `json:"name" validate:"required,max=100"`
	FieldType   string     `json:"field_type" validate:"required,oneof=text number date bool"`
	TextValue   *string    `json:"text_value"`
	NumberValue *float64   `json:"number_value"`
	DateValue   *time.Time `json:"date_value"`
	BoolValue   *bool      `json:"bool_value"`
}

// CreateTask creates a task in a project, optionally assigned and with
// typed custom fields
func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)
	projectID := utils.ParseUint(c.Params("projectID"))

	project, err := tc.project(projectID, member.TeamID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	var input struct {
		Title        string             `json:"title" validate:"required,max=200"`
		Description  string             `json:"description" validate:"omitempty,max=5000"`
		AssigneeID   *uint              `json:"assignee_id"`
		DueDate      *time.Time         `json:"due_date"`
		Priority     string             `json:"priority" validate:"omitempty,oneof=low medium high"`
		CustomFields []customFieldInput `json:"custom_fields" validate:"omitempty,dive"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.AssigneeID != nil {
		if err := tc.checkAssignee(member.TeamID, *input.AssigneeID); err != nil {
			return utils.RespondError(c, err)
		}
	}

	task := models.Task{
		ProjectID:   project.ID,
		Title:       input.Title,
		Description: input.Description,
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
		CreatedBy:   user.ID,
	}
	if input.Priority != "" {
		task.Priority = input.Priority
	}

	fields, err := buildCustomFields(input.CustomFields)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	task.CustomFields = fields

	if err := tc.DB.Create(&task).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create task", err)
	}

	if task.AssigneeID != nil && *task.AssigneeID != user.ID {
		tc.Notifier.Create(*task.AssigneeID, utils.NotificationEvent{
			Type:      models.NotificationTaskAssigned,
			Title:     "Task assigned to you",
			Message:   fmt.Sprintf("You were assigned %q in %q", task.Title, project.Name),
			ProjectID: &project.ID,
			TaskID:    &task.ID,
			ActionURL: fmt.Sprintf("/projects/%d/tasks/%d", project.ID, task.ID),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(task))
}

// GetTasks lists a project's tasks with pagination and filters
func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	projectID := utils.ParseUint(c.Params("projectID"))

	if _, err := tc.project(projectID, member.TeamID); err != nil {
		return utils.RespondError(c, err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit > 200 {
		limit = 200
	}

	query := tc.DB.Model(&models.Task{}).Where("project_id = ?", projectID)
	if assignee := c.Query("assignee_id"); assignee != "" {
		query = query.Where("assignee_id = ?", utils.ParseUint(assignee))
	}
	if completed := c.Query("completed"); completed != "" {
		query = query.Where("completed = ?", completed == "true")
	}

	var total int64
	query.Count(&total)

	var tasks []models.Task
	err := query.Preload("Assignee").Preload("CustomFields").
		Order("due_date ASC NULLS LAST, created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch tasks", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  tasks,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetTask returns one task with assignee and custom fields
func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, err := tc.task(taskID, member.TeamID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(task))
}

// UpdateTask edits task fields; reassignment notifies the new assignee
func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	member := c.Locals("member").(*models.TeamMember)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, err := tc.task(taskID, member.TeamID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	var input struct {
		Title       string     `json:"title" validate:"required,max=200"`
		Description string     `json:"description" validate:"omitempty,max=5000"`
		AssigneeID  *uint      `json:"assignee_id"`
		DueDate     *time.Time `json:"due_date"`
		Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
		Completed   *bool      `json:"completed"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.AssigneeID != nil {
		if err := tc.checkAssignee(member.TeamID, *input.AssigneeID); err != nil {
			return utils.RespondError(c, err)
		}
	}

	previousAssignee := task.AssigneeID

	updates := map[string]interface{}{
		"title":       input.Title,
		"description": input.Description,
		"assignee_id": input.AssigneeID,
		"due_date":    input.DueDate,
	}
	if input.Priority != "" {
		updates["priority"] = input.Priority
	}
	if input.Completed != nil {
		updates["completed"] = *input.Completed
	}

	if err := tc.DB.Model(task).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update task", err)
	}

	newlyAssigned := input.AssigneeID != nil &&
		(previousAssignee == nil || *previousAssignee != *input.AssigneeID)
	if newlyAssigned && *input.AssigneeID != user.ID {
		tc.Notifier.Create(*input.AssigneeID, utils.NotificationEvent{
			Type:      models.NotificationTaskAssigned,
			Title:     "Task assigned to you",
			Message:   fmt.Sprintf("You were assigned %q", input.Title),
			ProjectID: &task.ProjectID,
			TaskID:    &task.ID,
			ActionURL: fmt.Sprintf("/projects/%d/tasks/%d", task.ProjectID, task.ID),
		})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Task updated"}))
}

// CompleteTask marks a task done
func (tc *TaskController) CompleteTask(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, err := tc.task(taskID, member.TeamID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	if err := tc.DB.Model(task).Update("completed", true).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to complete task", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Task completed"}))
}

// DeleteTask removes a task and its custom fields
func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	member := c.Locals("member").(*models.TeamMember)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, err := tc.task(taskID, member.TeamID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskCustomField{}).Error; err != nil {
			return err
		}
		return tx.Delete(task).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete task", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Task deleted"}))
}

func (tc *TaskController) project(projectID, teamID uint) (*models.Project, error) {
	var project models.Project
	err := tc.DB.Where("id = ? AND team_id = ?", projectID, teamID).First(&project).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NotFound("Project not found")
		}
		return nil, utils.Dependency("Failed to load project", err)
	}
	return &project, nil
}

func (tc *TaskController) task(taskID, teamID uint) (*models.Task, error) {
	var task models.Task
	err := tc.DB.Preload("Assignee").Preload("CustomFields").
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("tasks.id = ? AND projects.team_id = ?", taskID, teamID).
		First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NotFound("Task not found")
		}
		return nil, utils.Dependency("Failed to load task", err)
	}
	return &task, nil
}

func (tc *TaskController) checkAssignee(teamID, assigneeID uint) error {
	var count int64
	err := tc.DB.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, assigneeID).
		Count(&count).Error
	if err != nil {
		return utils.Dependency("Failed to check assignee", err)
	}
	if count == 0 {
		return utils.Invalid("Assignee must be a member of the team")
	}
	return nil
}

func buildCustomFields(inputs []customFieldInput) ([]models.TaskCustomField, error) {
	var fields []models.TaskCustomField
	for _, in := range inputs {
		field := models.TaskCustomField{
			Name:        in.Name,
			FieldType:   in.FieldType,
			TextValue:   in.TextValue,
			NumberValue: in.NumberValue,
			DateValue:   in.DateValue,
			BoolValue:   in.BoolValue,
		}
		if err := field.Validate(); err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}
