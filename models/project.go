package models

import (
	"time"

	"gorm.io/gorm"
)

// Project represents a project owned by a team
type Project struct {
	gorm.Model
	TeamID      uint       `gorm:"not null;index" json:"team_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	StatusID    *uint      `gorm:"index" json:"status_id"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   uint       `gorm:"not null" json:"created_by"`

	// Relations
	Team        Team               `json:"-"`
	Status      *ProjectStatus     `gorm:"foreignKey:StatusID" json:"status,omitempty"`
	Tasks       []Task             `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
	Transitions []StatusTransition `gorm:"foreignKey:ProjectID" json:"transitions,omitempty"`
}

// StatusCategory is the rename-stable lifecycle phase of a status. The
// confirmation table is keyed by category so renaming a status does not
// change its transition behavior.
type StatusCategory string

const (
	CategoryPlanning  StatusCategory = "planning"
	CategoryActive    StatusCategory = "active"
	CategoryOnHold    StatusCategory = "on_hold"
	CategoryCompleted StatusCategory = "completed"
	CategoryCancelled StatusCategory = "cancelled"
)

// ProjectStatus represents one configurable lifecycle status of a team
type ProjectStatus struct {
	gorm.Model
	TeamID    uint           `gorm:"not null;index" json:"team_id"`
	Name      string         `gorm:"not null" json:"name"`
	Color     string         `gorm:"default:'#6b7280'" json:"color"`
	SortOrder int            `gorm:"default:0" json:"sort_order"`
	Category  StatusCategory `gorm:"not null;default:'planning'" json:"category"`

	// Relations
	Team Team `json:"-"`
}

// sensitive transitions that need an explicit user confirmation before
// taking effect
var confirmableTransitions = map[StatusCategory]map[StatusCategory]struct{}{
	CategoryActive: {
		CategoryCancelled: {},
		CategoryOnHold:    {},
	},
	CategoryCompleted: {
		CategoryPlanning: {},
		CategoryActive:   {},
		CategoryOnHold:   {},
	},
	CategoryCancelled: {
		CategoryPlanning:  {},
		CategoryActive:    {},
		CategoryOnHold:    {},
		CategoryCompleted: {},
	},
}

// RequiresConfirmation reports whether moving between the two lifecycle
// phases is sensitive enough to ask the user first
func RequiresConfirmation(from, to StatusCategory) bool {
	targets, ok := confirmableTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// StatusTransition is one immutable entry of a project's status history.
// Rows are only ever inserted; the ordered sequence per project is the
// full history.
type StatusTransition struct {
	gorm.Model
	ProjectID    uint   `gorm:"not null;index" json:"project_id"`
	FromStatusID *uint  `json:"from_status_id"` // nil for the initial transition
	ToStatusID   uint   `gorm:"not null" json:"to_status_id"`
	UserID       uint   `gorm:"not null" json:"user_id"`
	Comment      string `json:"comment,omitempty"`

	// Relations
	Project    Project        `json:"-"`
	FromStatus *ProjectStatus `gorm:"foreignKey:FromStatusID" json:"from_status,omitempty"`
	ToStatus   *ProjectStatus `gorm:"foreignKey:ToStatusID" json:"to_status,omitempty"`
	User       User           `json:"user,omitempty"`
}

// DefaultStatuses returns the status set seeded into a new team
func DefaultStatuses(teamID uint) []ProjectStatus {
	return []ProjectStatus{
		{TeamID: teamID, Name: "Planning", Color: "#6b7280", SortOrder: 0, Category: CategoryPlanning},
		{TeamID: teamID, Name: "In Progress", Color: "#3b82f6", SortOrder: 1, Category: CategoryActive},
		{TeamID: teamID, Name: "On Hold", Color: "#f59e0b", SortOrder: 2, Category: CategoryOnHold},
		{TeamID: teamID, Name: "Completed", Color: "#10b981", SortOrder: 3, Category: CategoryCompleted},
		{TeamID: teamID, Name: "Cancelled", Color: "#ef4444", SortOrder: 4, Category: CategoryCancelled},
	}
}
