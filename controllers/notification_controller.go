package controller

import (
	"log"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
	"renewly/models"
	"renewly/utils"
)

type NotificationController struct {
	DB       *gorm.DB
	Notifier *utils.Notifier
	Logger   *log.Logger

	// live websocket subscribers, keyed by user id
	mu      sync.RWMutex
	streams map[uint][]*websocket.Conn
}

func NewNotificationController(db *gorm.DB, notifier *utils.Notifier, logger *log.Logger) *NotificationController {
	nc := &NotificationController{
		DB:       db,
		Notifier: notifier,
		Logger:   logger,
		streams:  make(map[uint][]*websocket.Conn),
	}
	// Push stored notifications to connected clients
	notifier.Broadcast = nc.push
	return nc
}

// GetNotifications lists the caller's notifications, newest first
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}

	query := nc.DB.Model(&models.Notification{}).Where("user_id = ?", user.ID)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var total int64
	query.Count(&total)

	var notifications []models.Notification
	err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch notifications", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  notifications,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetUnreadCount returns the unread badge counter
func (nc *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	count, err := nc.Notifier.UnreadCount(user.ID)
	if err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"unread": count}))
}

// MarkRead marks a single notification as read (idempotent)
func (nc *NotificationController) MarkRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := utils.ParseUint(c.Params("notificationID"))

	if err := nc.Notifier.MarkRead(user.ID, notificationID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Notification marked as read"}))
}

// MarkAllRead marks every unread notification as read
func (nc *NotificationController) MarkAllRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if err := nc.Notifier.MarkAllRead(user.ID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "All notifications marked as read"}))
}

// MarkSelectedRead marks a batch of notifications as read
func (nc *NotificationController) MarkSelectedRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		IDs []uint `json:"ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := nc.Notifier.MarkSelectedRead(user.ID, input.IDs); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Notifications marked as read"}))
}

// DeleteNotification removes one notification
func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := utils.ParseUint(c.Params("notificationID"))

	if err := nc.Notifier.Delete(user.ID, notificationID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Notification deleted"}))
}

// DeleteAll clears the caller's notification feed
func (nc *NotificationController) DeleteAll(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if err := nc.Notifier.DeleteAll(user.ID); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "All notifications deleted"}))
}

// DeleteSelected removes a batch of notifications
func (nc *NotificationController) DeleteSelected(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		IDs []uint `json:"ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := nc.Notifier.DeleteSelected(user.ID, input.IDs); err != nil {
		return utils.RespondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Notifications deleted"}))
}

// HandleStream keeps a websocket open and pushes new notifications as
// they are created. The userID local is resolved by the JWT middleware
// before the upgrade.
func (nc *NotificationController) HandleStream(conn *websocket.Conn) {
	userID, ok := conn.Locals("userID").(uint)
	if !ok {
		conn.Close()
		return
	}

	nc.subscribe(userID, conn)
	defer nc.unsubscribe(userID, conn)

	// Block reading until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (nc *NotificationController) subscribe(userID uint, conn *websocket.Conn) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.streams[userID] = append(nc.streams[userID], conn)
}

func (nc *NotificationController) unsubscribe(userID uint, conn *websocket.Conn) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	conns := nc.streams[userID]
	for i, c := range conns {
		if c == conn {
			nc.streams[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(nc.streams[userID]) == 0 {
		delete(nc.streams, userID)
	}
	conn.Close()
}

func (nc *NotificationController) push(n *models.Notification) {
	nc.mu.RLock()
	conns := append([]*websocket.Conn(nil), nc.streams[n.UserID]...)
	nc.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(n); err != nil {
			nc.Logger.Printf("stream write to user %d failed: %v", n.UserID, err)
		}
	}
}
