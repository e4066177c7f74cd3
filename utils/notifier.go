package utils

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"renewly/models"
)

// dedupWindow is how long a matching unread due-date notification
// suppresses a new one for the same task
const dedupWindow = 24 * time.Hour

// bulk updates and deletes run in chunks of this many ids
const bulkChunkSize = 500

// NotificationEvent describes one logical event before fan-out
type NotificationEvent struct {
	Type      models.NotificationType
	Title     string
	Message   string
	ProjectID *uint
	TaskID    *uint
	ActionURL string
}

// Notifier creates and manages notification records. Broadcast, when
// set, is invoked once per stored notification so the websocket stream
// can push it live.
type Notifier struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Broadcast func(n *models.Notification)
}

func NewNotifier(db *gorm.DB, logger *log.Logger) *Notifier {
	return &Notifier{
		DB:     db,
		Logger: logger,
	}
}

// Create stores a notification for a single recipient. Due-date driven
// types are suppressed when an unread notification of the same type
// already exists for the same task inside the dedup window; a suppressed
// event returns (nil, nil).
func (n *Notifier) Create(userID uint, event NotificationEvent) (*models.Notification, error) {
	var recipient models.User
	if err := n.DB.First(&recipient, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFound("Recipient not found")
		}
		return nil, Dependency("Failed to look up recipient", err)
	}

	if event.Type.IsDueDateDriven() && event.TaskID != nil {
		var count int64
		err := n.DB.Model(&models.Notification{}).
			Where("user_id = ? AND type = ? AND task_id = ? AND read = ? AND created_at > ?",
				userID, event.Type, *event.TaskID, false, time.Now().Add(-dedupWindow)).
			Count(&count).Error
		if err != nil {
			return nil, Dependency("Failed to check for duplicate notifications", err)
		}
		if count > 0 {
			return nil, nil
		}
	}

	notification := models.Notification{
		UserID:    userID,
		Type:      event.Type,
		Title:     event.Title,
		Message:   event.Message,
		ProjectID: event.ProjectID,
		TaskID:    event.TaskID,
		ActionURL: event.ActionURL,
	}

	if err := n.DB.Create(&notification).Error; err != nil {
		return nil, Dependency("Failed to create notification", err)
	}

	if n.Broadcast != nil {
		n.Broadcast(&notification)
	}

	return &notification, nil
}

// FanOut delivers one logical event to every recipient individually.
// Per-recipient failures are logged and skipped so one missing user does
// not starve the rest of the team.
func (n *Notifier) FanOut(userIDs []uint, event NotificationEvent) ([]models.Notification, error) {
	var created []models.Notification
	for _, userID := range userIDs {
		notification, err := n.Create(userID, event)
		if err != nil {
			n.Logger.Printf("fan-out to user %d failed: %v", userID, err)
			continue
		}
		if notification != nil {
			created = append(created, *notification)
		}
	}
	return created, nil
}

// MarkRead flips a notification to read. Marking an already-read
// notification again is a no-op, not an error.
func (n *Notifier) MarkRead(userID, notificationID uint) error {
	result := n.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return Dependency("Failed to mark notification as read", result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish "missing" from "already read": the update above
		// affects already-read rows too, so zero rows means no such row.
		var count int64
		n.DB.Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Count(&count)
		if count == 0 {
			return NotFound("Notification not found")
		}
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read
func (n *Notifier) MarkAllRead(userID uint) error {
	err := n.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
	if err != nil {
		return Dependency("Failed to mark notifications as read", err)
	}
	return nil
}

// MarkSelectedRead marks the given notifications as read. The whole
// batch commits or rolls back as a unit; chunking is internal.
func (n *Notifier) MarkSelectedRead(userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := n.DB.Transaction(func(tx *gorm.DB) error {
		for chunk, idChunk := range chunkIDs(ids) {
			err := tx.Model(&models.Notification{}).
				Where("user_id = ? AND id IN ?", userID, idChunk).
				Update("read", true).Error
			if err != nil {
				return fmt.Errorf("chunk %d of %d failed: %w", chunk+1, (len(ids)+bulkChunkSize-1)/bulkChunkSize, err)
			}
		}
		return nil
	})
	if err != nil {
		return Dependency(fmt.Sprintf("Failed to mark notifications as read: %v", err), err)
	}
	return nil
}

// Delete removes a single notification owned by the user
func (n *Notifier) Delete(userID, notificationID uint) error {
	result := n.DB.Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return Dependency("Failed to delete notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("Notification not found")
	}
	return nil
}

// DeleteAll removes every notification of the user
func (n *Notifier) DeleteAll(userID uint) error {
	err := n.DB.Where("user_id = ?", userID).Delete(&models.Notification{}).Error
	if err != nil {
		return Dependency("Failed to delete notifications", err)
	}
	return nil
}

// DeleteSelected removes the given notifications as one atomic batch
func (n *Notifier) DeleteSelected(userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := n.DB.Transaction(func(tx *gorm.DB) error {
		for chunk, idChunk := range chunkIDs(ids) {
			err := tx.Where("user_id = ? AND id IN ?", userID, idChunk).
				Delete(&models.Notification{}).Error
			if err != nil {
				return fmt.Errorf("chunk %d of %d failed: %w", chunk+1, (len(ids)+bulkChunkSize-1)/bulkChunkSize, err)
			}
		}
		return nil
	})
	if err != nil {
		return Dependency(fmt.Sprintf("Failed to delete notifications: %v", err), err)
	}
	return nil
}

// UnreadCount returns the number of unread notifications for the user
func (n *Notifier) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := n.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, Dependency("Failed to count notifications", err)
	}
	return count, nil
}

func chunkIDs(ids []uint) [][]uint {
	var chunks [][]uint
	for start := 0; start < len(ids); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
