package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"renewly/models"
	"renewly/utils"
)

// how far ahead the scan warns about upcoming due dates
const dueSoonHorizon = 24 * time.Hour

// DueDateWorker periodically scans tasks for approaching and missed due
// dates and notifies the assignees. Each pass is a single synchronous
// sweep; the notifier's dedup window keeps repeated passes from stacking
// duplicate alerts.
type DueDateWorker struct {
	DB       *gorm.DB
	Notifier *utils.Notifier
	Logger   *log.Logger
	Interval time.Duration
}

func NewDueDateWorker(db *gorm.DB, notifier *utils.Notifier, logger *log.Logger) *DueDateWorker {
	return &DueDateWorker{
		DB:       db,
		Notifier: notifier,
		Logger:   logger,
		Interval: time.Hour,
	}
}

func (dw *DueDateWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	dw.Logger.Println("Due date worker started")

	ticker := time.NewTicker(dw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dw.Logger.Println("Due date worker shutting down...")
			return
		case <-ticker.C:
			dw.RunPass()
		}
	}
}

// RunPass executes one due-soon plus overdue sweep
func (dw *DueDateWorker) RunPass() {
	now := time.Now()
	dw.notifyDueSoon(now)
	dw.notifyOverdue(now)
}

func (dw *DueDateWorker) notifyDueSoon(now time.Time) {
	var tasks []models.Task
	err := dw.DB.Where(
		"completed = ? AND assignee_id IS NOT NULL AND due_date > ? AND due_date <= ?",
		false, now, now.Add(dueSoonHorizon),
	).Find(&tasks).Error
	if err != nil {
		dw.Logger.Printf("Error fetching due-soon tasks: %v", err)
		return
	}

	for _, task := range tasks {
		_, err := dw.Notifier.Create(*task.AssigneeID, utils.NotificationEvent{
			Type:      models.NotificationTaskDueSoon,
			Title:     "Task due soon",
			Message:   fmt.Sprintf("%q is due %s", task.Title, task.DueDate.Format("Jan 2 15:04")),
			ProjectID: &task.ProjectID,
			TaskID:    &task.ID,
			ActionURL: fmt.Sprintf("/projects/%d/tasks/%d", task.ProjectID, task.ID),
		})
		if err != nil {
			dw.Logger.Printf("Error notifying due-soon for task %d: %v", task.ID, err)
		}
	}
}

func (dw *DueDateWorker) notifyOverdue(now time.Time) {
	var tasks []models.Task
	err := dw.DB.Where(
		"completed = ? AND assignee_id IS NOT NULL AND due_date < ?",
		false, now,
	).Find(&tasks).Error
	if err != nil {
		dw.Logger.Printf("Error fetching overdue tasks: %v", err)
		return
	}

	for _, task := range tasks {
		_, err := dw.Notifier.Create(*task.AssigneeID, utils.NotificationEvent{
			Type:      models.NotificationTaskOverdue,
			Title:     "Task overdue",
			Message:   fmt.Sprintf("%q was due %s", task.Title, task.DueDate.Format("Jan 2")),
			ProjectID: &task.ProjectID,
			TaskID:    &task.ID,
			ActionURL: fmt.Sprintf("/projects/%d/tasks/%d", task.ProjectID, task.ID),
		})
		if err != nil {
			dw.Logger.Printf("Error notifying overdue for task %d: %v", task.ID, err)
		}
	}
}
