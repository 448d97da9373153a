package routes

import (
	"github.com/eldertek/pg-pointage-sub001/controllers"
	"github.com/eldertek/pg-pointage-sub001/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App) {
	// Initialize controllers
	authController := &controllers.AuthController{}
	userController := &controllers.UserController{}
	siteController := &controllers.SiteController{}
	anomalyController := &controllers.AnomalyController{}
	timesheetController := controllers.NewTimesheetController()
	scheduleImportController := &controllers.ScheduleImportController{}
	logController := controllers.NewLogController()
	healthController := controllers.NewHealthController(nil)

	app.Get("/health", healthController.GetHealthStatus)

	// API group
	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Get("/me", middleware.JWTMiddleware(), authController.Me)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware(), middleware.LogActivityMiddleware())

	protected.Post("/auth/logout", authController.Logout)

	// Timesheet routes. Any authenticated employee can submit a scan;
	// the on-demand anomaly sweep is for managers and above.
	timesheets := protected.Group("/timesheets")
	timesheets.Post("/create", timesheetController.CreateTimesheet)
	timesheets.Post("/scan-anomalies", middleware.RequireManagerOrAbove(), timesheetController.ScanAnomalies)
	timesheets.Get("/", timesheetController.GetTimesheets)

	// Anomaly routes
	anomalies := protected.Group("/anomalies")
	anomalies.Get("/", anomalyController.GetAnomalies)
	anomalies.Get("/:id", anomalyController.GetAnomaly)
	anomalies.Put("/:id/status", middleware.RequireManagerOrAbove(), anomalyController.UpdateAnomalyStatus)

	// User management routes
	users := protected.Group("/users")
	users.Get("/", middleware.RequireManagerOrAbove(), userController.GetUsers)
	users.Get("/:id", middleware.RequireManagerOrAbove(), userController.GetUser)
	users.Post("/", middleware.RequireAdmin(), userController.CreateUser)
	users.Delete("/:id", middleware.RequireAdmin(), userController.DeactivateUser)

	// Site management routes
	sites := protected.Group("/sites")
	sites.Get("/", middleware.RequireManagerOrAbove(), siteController.GetSites)
	sites.Get("/:id", middleware.RequireManagerOrAbove(), siteController.GetSite)
	sites.Post("/", middleware.RequireAdmin(), siteController.CreateSite)
	sites.Post("/:id/assignments", middleware.RequireAdmin(), siteController.AssignEmployee)
	sites.Delete("/:id/assignments/:assignment_id", middleware.RequireAdmin(), siteController.UnassignEmployee)

	// Schedule import (admin only)
	protected.Post("/schedules/import", middleware.RequireAdmin(), scheduleImportController.Import)

	// Activity log routes (admin only)
	logs := protected.Group("/logs", middleware.RequireAdmin())
	logs.Get("/", logController.GetLogs)
	logs.Get("/archives", logController.GetArchives)
	logs.Get("/archives/:id/download", logController.DownloadArchive)
	logs.Get("/:id", logController.GetLog)
	logs.Post("/flush", logController.FlushCachedLogs)
}
