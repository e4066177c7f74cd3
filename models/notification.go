package models

import "gorm.io/gorm"

// NotificationType identifies the event that produced a notification
type NotificationType string

const (
	NotificationTaskDueSoon          NotificationType = "task_due_soon"
	NotificationTaskOverdue          NotificationType = "task_overdue"
	NotificationTaskAssigned         NotificationType = "task_assigned"
	NotificationProjectCreated       NotificationType = "project_created"
	NotificationProjectStatusChanged NotificationType = "project_status_changed"
	NotificationMemberJoined         NotificationType = "member_joined"
	NotificationMemberRemoved        NotificationType = "member_removed"
	NotificationRoleChanged          NotificationType = "role_changed"
	NotificationOwnershipTransferred NotificationType = "ownership_transferred"
)

// IsDueDateDriven reports whether the type comes from the scheduled
// due-date scan; these are the types subject to the dedup window.
func (t NotificationType) IsDueDateDriven() bool {
	return t == NotificationTaskDueSoon || t == NotificationTaskOverdue
}

// Notification represents one feed entry for one recipient. The only
// mutation after insert is flipping Read; deletion is terminal.
type Notification struct {
	gorm.Model
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"not null;index" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `json:"message"`
	ProjectID *uint            `gorm:"index" json:"project_id,omitempty"`
	TaskID    *uint            `gorm:"index" json:"task_id,omitempty"`
	Read      bool             `gorm:"default:false;index" json:"read"`
	ActionURL string           `json:"action_url,omitempty"`

	// Relations
	User User `json:"-"`
}
