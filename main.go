package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"renewly/config"
	"renewly/middleware"
	"renewly/routes"
	"renewly/utils"
	"renewly/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "RENEWLY: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry when a DSN is configured
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// One notifier shared by the HTTP layer and the workers, so worker
	// notifications reach the websocket stream
	notifier := utils.NewNotifier(config.DB, log.New(os.Stdout, "NOTIFY: ", log.LstdFlags))

	// Initialize and start the due date worker
	dueDateWorker := worker.NewDueDateWorker(config.DB, notifier, log.New(os.Stdout, "DUEDATE: ", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dueDateWorker.Start(ctx)

	// Root endpoint, registered before the 404 catch-all in SetupRoutes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Setup routes
	routes.SetupRoutes(app, config.DB, notifier)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
