package utils

import (
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"renewly/models"
)

// TransitionManager owns the project status lifecycle: the append-only
// history, the current-status pointer, and the fan-out that follows a
// successful transition.
type TransitionManager struct {
	DB       *gorm.DB
	Notifier *Notifier
	Logger   *log.Logger
}

func NewTransitionManager(db *gorm.DB, notifier *Notifier, logger *log.Logger) *TransitionManager {
	return &TransitionManager{
		DB:       db,
		Notifier: notifier,
		Logger:   logger,
	}
}

// Record appends a history entry and moves the current-status pointer in
// one transaction. expectedFromID is the status the caller last observed
// (nil for the initial transition); a mismatch after taking the row lock
// means another writer won and the caller gets a conflict, not a silent
// re-apply. The project row lock serializes concurrent attempts.
func (tm *TransitionManager) Record(projectID uint, expectedFromID *uint, toStatusID uint, userID uint, comment string) (*models.StatusTransition, error) {
	var transition models.StatusTransition
	var teamID uint

	err := tm.DB.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, projectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("Project not found")
			}
			return Dependency("Failed to load project", err)
		}
		teamID = project.TeamID

		if !statusPointerMatches(project.StatusID, expectedFromID) {
			return Conflict("Project status was changed by someone else, please refresh and retry")
		}

		var toStatus models.ProjectStatus
		err := tx.Where("id = ? AND team_id = ?", toStatusID, project.TeamID).First(&toStatus).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("Target status does not exist")
			}
			return Dependency("Failed to load target status", err)
		}

		transition = models.StatusTransition{
			ProjectID:    project.ID,
			FromStatusID: project.StatusID,
			ToStatusID:   toStatus.ID,
			UserID:       userID,
			Comment:      comment,
		}
		if err := tx.Create(&transition).Error; err != nil {
			return Dependency("Failed to record status transition", err)
		}

		if err := tx.Model(&project).Update("status_id", toStatus.ID).Error; err != nil {
			return Dependency("Failed to update project status", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tm.notifyTransition(teamID, projectID, userID, &transition)

	return &transition, nil
}

// RequiresConfirmation reports whether moving the project to the target
// status needs an explicit user confirmation, based on the stable status
// categories of both ends.
func (tm *TransitionManager) RequiresConfirmation(projectID, toStatusID uint) (bool, error) {
	var project models.Project
	if err := tm.DB.Preload("Status").First(&project, projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, NotFound("Project not found")
		}
		return false, Dependency("Failed to load project", err)
	}
	if project.Status == nil {
		// Initial transition is never sensitive
		return false, nil
	}

	var toStatus models.ProjectStatus
	err := tm.DB.Where("id = ? AND team_id = ?", toStatusID, project.TeamID).First(&toStatus).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, NotFound("Target status does not exist")
		}
		return false, Dependency("Failed to load target status", err)
	}

	return models.RequiresConfirmation(project.Status.Category, toStatus.Category), nil
}

// History returns the full transition history of a project in creation
// order
func (tm *TransitionManager) History(projectID uint) ([]models.StatusTransition, error) {
	var transitions []models.StatusTransition
	err := tm.DB.Where("project_id = ?", projectID).
		Preload("FromStatus").
		Preload("ToStatus").
		Preload("User").
		Order("created_at ASC, id ASC").
		Find(&transitions).Error
	if err != nil {
		return nil, Dependency("Failed to load status history", err)
	}
	return transitions, nil
}

func (tm *TransitionManager) notifyTransition(teamID, projectID, actorID uint, transition *models.StatusTransition) {
	var memberIDs []uint
	err := tm.DB.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id != ?", teamID, actorID).
		Pluck("user_id", &memberIDs).Error
	if err != nil {
		tm.Logger.Printf("failed to load members for transition notify: %v", err)
		return
	}

	var project models.Project
	if err := tm.DB.Preload("Status").First(&project, projectID).Error; err != nil {
		tm.Logger.Printf("failed to load project for transition notify: %v", err)
		return
	}

	statusName := "unknown"
	if project.Status != nil {
		statusName = project.Status.Name
	}

	tm.Notifier.FanOut(memberIDs, NotificationEvent{
		Type:      models.NotificationProjectStatusChanged,
		Title:     "Project status changed",
		Message:   fmt.Sprintf("%q moved to %s", project.Name, statusName),
		ProjectID: &project.ID,
		ActionURL: fmt.Sprintf("/projects/%d", project.ID),
	})
}

func statusPointerMatches(current, expected *uint) bool {
	if current == nil && expected == nil {
		return true
	}
	if current == nil || expected == nil {
		return false
	}
	return *current == *expected
}
