package routes

import (
	"log"
	"os"

	controller "renewly/controllers"
	"renewly/middleware"
	"renewly/models"
	"renewly/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, notifier *utils.Notifier) {
	// Shared services
	transitions := utils.NewTransitionManager(db, notifier, log.New(os.Stdout, "STATUS: ", log.LstdFlags))
	mailEnabled := os.Getenv("SMTP_HOST") != ""
	membership := utils.NewMembershipManager(db, notifier, log.New(os.Stdout, "TEAM: ", log.LstdFlags), mailEnabled)

	// Initialize controllers with their respective loggers
	teamController := controller.NewTeamController(db, membership, log.New(os.Stdout, "TEAM: ", log.LstdFlags))
	projectController := controller.NewProjectController(db, transitions, notifier, log.New(os.Stdout, "PROJECT: ", log.LstdFlags))
	statusController := controller.NewStatusController(db, log.New(os.Stdout, "STATUS: ", log.LstdFlags))
	taskController := controller.NewTaskController(db, notifier, log.New(os.Stdout, "TASK: ", log.LstdFlags))
	notificationController := controller.NewNotificationController(db, notifier, log.New(os.Stdout, "NOTIFY: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Team routes
	teams := api.Group("/teams")
	teams.Post("/", teamController.CreateTeam)
	teams.Get("/", teamController.GetTeams)

	team := teams.Group("/:teamID", middleware.TeamMember())
	team.Get("/", teamController.GetTeam)
	team.Put("/", middleware.RequireCapability(models.CapEditTeamSettings), teamController.UpdateTeam)
	team.Delete("/", middleware.RequireCapability(models.CapDeleteTeam), teamController.DeleteTeam)
	team.Get("/members", teamController.GetMembers)
	team.Post("/invitations", middleware.InviteRateLimiter(), teamController.InviteMember)
	team.Get("/invitations", middleware.RequireCapability(models.CapInviteMembers), teamController.GetInvitations)
	team.Delete("/invitations/:invitationID", teamController.CancelInvitation)
	team.Put("/members/:userID/role", teamController.ChangeMemberRole)
	team.Delete("/members/:userID", teamController.RemoveMember)
	team.Post("/leave", teamController.LeaveTeam)
	team.Post("/transfer-ownership", teamController.TransferOwnership)

	// Invitation routes addressed by token, outside the member gate
	invitations := api.Group("/invitations")
	invitations.Get("/", teamController.GetMyInvitations)
	invitations.Post("/accept", teamController.AcceptInvitation)
	invitations.Post("/decline", teamController.DeclineInvitation)

	// Project status catalog
	statuses := team.Group("/statuses")
	statuses.Get("/", statusController.GetStatuses)
	statuses.Post("/", middleware.RequireCapability(models.CapManageStatuses), statusController.CreateStatus)
	statuses.Put("/reorder", middleware.RequireCapability(models.CapManageStatuses), statusController.ReorderStatuses)
	statuses.Put("/:statusID", middleware.RequireCapability(models.CapManageStatuses), statusController.UpdateStatus)
	statuses.Delete("/:statusID", middleware.RequireCapability(models.CapManageStatuses), statusController.DeleteStatus)

	// Project routes
	projects := team.Group("/projects")
	projects.Get("/", projectController.GetProjects)
	projects.Post("/", middleware.RequireCapability(models.CapCreateProjects), projectController.CreateProject)
	projects.Get("/:projectID", projectController.GetProject)
	projects.Put("/:projectID", middleware.RequireCapability(models.CapEditProjects), projectController.UpdateProject)
	projects.Delete("/:projectID", middleware.RequireCapability(models.CapDeleteProjects), projectController.DeleteProject)
	projects.Post("/:projectID/status", middleware.RequireCapability(models.CapChangeStatus), projectController.ChangeStatus)
	projects.Get("/:projectID/history", projectController.GetStatusHistory)

	// Task routes
	tasks := projects.Group("/:projectID/tasks")
	tasks.Get("/", taskController.GetTasks)
	tasks.Post("/", taskController.CreateTask)
	tasks.Get("/:taskID", taskController.GetTask)
	tasks.Put("/:taskID", taskController.UpdateTask)
	tasks.Post("/:taskID/complete", taskController.CompleteTask)
	tasks.Delete("/:taskID", taskController.DeleteTask)

	// Notification routes
	notifications := api.Group("/notifications")
	notifications.Get("/", notificationController.GetNotifications)
	notifications.Get("/unread-count", notificationController.GetUnreadCount)
	notifications.Put("/read-all", notificationController.MarkAllRead)
	notifications.Put("/read", notificationController.MarkSelectedRead)
	notifications.Put("/:notificationID/read", notificationController.MarkRead)
	notifications.Delete("/all", notificationController.DeleteAll)
	notifications.Delete("/selected", notificationController.DeleteSelected)
	notifications.Delete("/:notificationID", notificationController.DeleteNotification)

	// WebSocket route for the live notification stream
	app.Get("/api/v1/notifications/stream", middleware.Protected(), websocket.New(func(c *websocket.Conn) {
		notificationController.HandleStream(c)
	}))

	log.Println("API routes initialized successfully")
}

// SetupRoutes registers every route. The notifier instance must be the
// one shared with the background workers so their notifications reach
// the websocket stream too.
func SetupRoutes(app *fiber.App, db *gorm.DB, notifier *utils.Notifier) {
	// Initialize Google OAuth after config load
	controller.InitGoogleOAuth()

	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db, notifier)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
