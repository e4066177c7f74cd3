package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewly/models"
)

func TestNotifierCreate(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")

	notification, err := notifier.Create(user.ID, NotificationEvent{
		Type:    models.NotificationTaskAssigned,
		Title:   "Task assigned",
		Message: "You have a new task",
	})
	require.NoError(t, err)
	require.NotNil(t, notification)
	assert.Equal(t, user.ID, notification.UserID)
	assert.False(t, notification.Read)
}

func TestNotifierCreateUnknownRecipient(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())

	_, err := notifier.Create(999, NotificationEvent{
		Type:  models.NotificationTaskAssigned,
		Title: "Task assigned",
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNotifierDueDateDedup(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")
	taskID := uint(7)

	event := NotificationEvent{
		Type:   models.NotificationTaskDueSoon,
		Title:  "Task due soon",
		TaskID: &taskID,
	}

	first, err := notifier.Create(user.ID, event)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same type, same task, unread, inside the window: suppressed
	second, err := notifier.Create(user.ID, event)
	require.NoError(t, err)
	assert.Nil(t, second)

	var count int64
	db.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// A different due-date type for the same task is not a duplicate
	overdue, err := notifier.Create(user.ID, NotificationEvent{
		Type:   models.NotificationTaskOverdue,
		Title:  "Task overdue",
		TaskID: &taskID,
	})
	require.NoError(t, err)
	assert.NotNil(t, overdue)

	// Nor is the same type for a different task
	otherTask := uint(8)
	other, err := notifier.Create(user.ID, NotificationEvent{
		Type:   models.NotificationTaskDueSoon,
		Title:  "Task due soon",
		TaskID: &otherTask,
	})
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestNotifierDedupClearsAfterRead(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")
	taskID := uint(7)

	event := NotificationEvent{
		Type:   models.NotificationTaskDueSoon,
		Title:  "Task due soon",
		TaskID: &taskID,
	}

	first, err := notifier.Create(user.ID, event)
	require.NoError(t, err)
	require.NoError(t, notifier.MarkRead(user.ID, first.ID))

	// Once read, the earlier notification no longer suppresses
	second, err := notifier.Create(user.ID, event)
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestNotifierDedupWindowExpires(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")
	taskID := uint(7)

	event := NotificationEvent{
		Type:   models.NotificationTaskDueSoon,
		Title:  "Task due soon",
		TaskID: &taskID,
	}

	first, err := notifier.Create(user.ID, event)
	require.NoError(t, err)

	// Age the first notification past the window
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-25*time.Hour)).Error)

	second, err := notifier.Create(user.ID, event)
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestNotifierBroadcastHook(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")

	var pushed []uint
	notifier.Broadcast = func(n *models.Notification) {
		pushed = append(pushed, n.UserID)
	}

	_, err := notifier.Create(user.ID, NotificationEvent{
		Type:  models.NotificationMemberJoined,
		Title: "New team member",
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{user.ID}, pushed)
}

func TestNotifierFanOutSkipsMissingRecipients(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")

	created, err := notifier.FanOut([]uint{alice.ID, 999, bob.ID}, NotificationEvent{
		Type:  models.NotificationProjectCreated,
		Title: "New project",
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestNotifierMarkReadIdempotent(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")

	notification, err := notifier.Create(user.ID, NotificationEvent{
		Type:  models.NotificationTaskAssigned,
		Title: "Task assigned",
	})
	require.NoError(t, err)

	require.NoError(t, notifier.MarkRead(user.ID, notification.ID))
	// Marking again is a no-op, not an error
	require.NoError(t, notifier.MarkRead(user.ID, notification.ID))

	var stored models.Notification
	require.NoError(t, db.First(&stored, notification.ID).Error)
	assert.True(t, stored.Read)
}

func TestNotifierMarkReadMissing(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")

	err := notifier.MarkRead(user.ID, 12345)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNotifierMarkReadScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")

	notification, err := notifier.Create(alice.ID, NotificationEvent{
		Type:  models.NotificationTaskAssigned,
		Title: "Task assigned",
	})
	require.NoError(t, err)

	// Bob cannot touch Alice's notification
	err = notifier.MarkRead(bob.ID, notification.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNotifierBulkOperations(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")

	var ids []uint
	for i := 0; i < 5; i++ {
		n, err := notifier.Create(user.ID, NotificationEvent{
			Type:  models.NotificationProjectCreated,
			Title: "New project",
		})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	require.NoError(t, notifier.MarkSelectedRead(user.ID, ids[:3]))
	count, err := notifier.UnreadCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, notifier.MarkAllRead(user.ID))
	count, err = notifier.UnreadCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, notifier.DeleteSelected(user.ID, ids[:2]))
	var remaining int64
	db.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&remaining)
	assert.Equal(t, int64(3), remaining)

	require.NoError(t, notifier.DeleteAll(user.ID))
	db.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&remaining)
	assert.Equal(t, int64(0), remaining)
}

func TestNotifierBulkEmptyIDs(t *testing.T) {
	db := openTestDB(t)
	notifier := NewNotifier(db, discardLogger())
	user := createUser(t, db, "alice@example.com")

	require.NoError(t, notifier.MarkSelectedRead(user.ID, nil))
	require.NoError(t, notifier.DeleteSelected(user.ID, nil))
}

func TestChunkIDs(t *testing.T) {
	ids := make([]uint, 1201)
	for i := range ids {
		ids[i] = uint(i)
	}
	chunks := chunkIDs(ids)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	assert.Len(t, chunks[2], 201)
}
