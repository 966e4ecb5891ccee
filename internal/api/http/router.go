package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/problem-desk/internal/api/http/handlers"
	"github.com/spec-kit/problem-desk/internal/auth"
	"github.com/spec-kit/problem-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Users           *handlers.UsersHandler
	Problems        *handlers.ProblemsHandler
	Notifications   *handlers.NotificationsHandler
	AssignmentRules *handlers.AssignmentRulesHandler
	AuthMiddleware  *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Users.Login)

	authed := app.Group("", cfg.AuthMiddleware.Handle)
	authed.Get("/auth/me", cfg.Users.Me)

	users := authed.Group("/users")
	users.Get("", cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Post("", auth.RequireRole(domain.RoleAdmin), cfg.Users.Create)
	users.Patch("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Users.Update)
	users.Post("/:id/toggle-status", auth.RequireRole(domain.RoleAdmin), cfg.Users.ToggleStatus)

	problems := authed.Group("/problems")
	problems.Post("", cfg.Problems.Create)
	problems.Get("", cfg.Problems.List)
	problems.Get("/:id", cfg.Problems.Get)
	problems.Patch("/:id/status", cfg.Problems.SetStatus)
	problems.Post("/:id/approve", auth.RequireStaff(), cfg.Problems.Approve)
	problems.Post("/:id/reject", auth.RequireStaff(), cfg.Problems.Reject)
	problems.Post("/:id/transfer", auth.RequireStaff(), cfg.Problems.Transfer)
	problems.Post("/:id/assign", auth.RequireStaff(), cfg.Problems.Assign)
	problems.Post("/:id/comments", cfg.Problems.AddComment)
	problems.Delete("/:id", cfg.Problems.Delete)

	notifications := authed.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("", cfg.Notifications.Clear)

	rules := authed.Group("/assignment-rules")
	rules.Get("/first-face", auth.RequireStaff(), cfg.AssignmentRules.ListFirstFace)
	rules.Put("/first-face", auth.RequireRole(domain.RoleAdmin), cfg.AssignmentRules.SetFirstFace)
	rules.Delete("/first-face/:department", auth.RequireRole(domain.RoleAdmin), cfg.AssignmentRules.RemoveFirstFace)
	rules.Get("/pre-assignments", auth.RequireStaff(), cfg.AssignmentRules.ListPreAssignments)
	rules.Put("/pre-assignments", auth.RequireRole(domain.RoleAdmin), cfg.AssignmentRules.SetPreAssignment)
	rules.Delete("/pre-assignments/:department", auth.RequireRole(domain.RoleAdmin), cfg.AssignmentRules.RemovePreAssignment)
}
