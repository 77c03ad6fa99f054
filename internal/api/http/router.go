package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/civicpulse/hub/internal/api/http/handlers"
	"github.com/civicpulse/hub/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Admin          *handlers.AdminHandler
	Departments    *handlers.DepartmentHandler
	Files          *handlers.FilesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes. Static segments are registered before the
// parameterized ones that could shadow them.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api")
	api.Get("/files/download/:path", cfg.Files.Download)

	users := api.Group("/users")
	users.Post("/signup", cfg.Users.Signup)
	users.Post("/login", cfg.Users.Login)
	citizen := users.Group("", cfg.AuthMiddleware.Handle, auth.RequireUser())
	citizen.Get("/complaints/history/:userId", cfg.Users.History)
	citizen.Post("/complain/raise", cfg.Users.Raise)
	citizen.Post("/complaints/:id/feedback", cfg.Users.SubmitFeedback)
	citizen.Get("/complaints/:id/rating", cfg.Users.Rating)

	admin := api.Group("/admin")
	admin.Post("/login", cfg.Admin.Login)
	adminOnly := admin.Group("", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	adminOnly.Get("/complaints", cfg.Admin.ListComplaints)
	adminOnly.Get("/complaints/department-count", cfg.Admin.DepartmentCount)
	adminOnly.Get("/complaints/city-count", cfg.Admin.CityCount)
	adminOnly.Put("/complaints/:id/assign-department", cfg.Admin.AssignDepartment)
	adminOnly.Put("/complaints/:id/status", cfg.Admin.UpdateStatus)
	adminOnly.Get("/complaints/:id/feedback", cfg.Admin.Feedback)
	adminOnly.Get("/complaints/:id/history", cfg.Admin.AuditTrail)

	dept := api.Group("/dept-manager")
	dept.Post("/login", cfg.Departments.Login)
	dept.Get("/all-names", cfg.Departments.AllNames)

	// Complaint-scoped reads are open to every role; the service checks visibility.
	viewer := dept.Group("/complaints", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	viewer.Get("/:id/workers", cfg.Departments.ComplaintWorkers)
	viewer.Get("/:id/department-name", cfg.Departments.DepartmentName)
	viewer.Get("/:id/deadline", cfg.Departments.Deadline)
	viewer.Get("/:id/completion-time", cfg.Departments.CompletionTime)
	viewer.Put("/:id/status", auth.RequireDepartment(), cfg.Departments.UpdateStatus)
	viewer.Put("/:id/complete", auth.RequireDepartment(), cfg.Departments.Complete)

	dept.Get("/:deptId", cfg.AuthMiddleware.Handle, auth.RequireDepartmentParam("deptId", true), cfg.Departments.Get)
	own := dept.Group("/:deptId", cfg.AuthMiddleware.Handle, auth.RequireDepartmentParam("deptId", false))
	own.Get("/complaints", cfg.Departments.Complaints)
	own.Post("/workers", cfg.Departments.CreateWorker)
	own.Get("/workers", cfg.Departments.ListWorkers)
}
