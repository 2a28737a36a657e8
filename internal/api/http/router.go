package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Users           *handlers.UsersHandler
	Issues          *handlers.IssuesHandler
	Authorities     *handlers.AuthoritiesHandler
	Leaderboard     *handlers.LeaderboardHandler
	AuthMiddleware  *auth.AuthMiddleware
	SubmissionLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	authProtected.Post("/password/change", cfg.Users.ChangePassword)
	authProtected.Get("/me", cfg.Users.Me)

	issues := app.Group("/issues", cfg.AuthMiddleware.Handle)
	submit := []fiber.Handler{auth.RequireRole(domain.RoleCitizen, domain.RoleAdmin)}
	if cfg.SubmissionLimit != nil {
		submit = append(submit, cfg.SubmissionLimit)
	}
	issues.Post("", append(submit, cfg.Issues.SubmitIssue)...)
	issues.Get("", auth.RequireAnyRole(), cfg.Issues.ListIssues)
	issues.Get("/:id", auth.RequireAnyRole(), cfg.Issues.GetIssue)
	issues.Post("/:id/upvote", auth.RequireRole(domain.RoleCitizen), cfg.Issues.ToggleUpvote)
	issues.Post("/:id/comments", auth.RequireAnyRole(), cfg.Issues.AddComment)
	issues.Patch("/:id/status", auth.RequireRole(domain.RoleAuthority, domain.RoleAdmin), cfg.Issues.Transition)
	issues.Post("/bulk/status", auth.RequireRole(domain.RoleAdmin), cfg.Issues.BulkTransition)
	issues.Get("/:id/candidates", auth.RequireRole(domain.RoleAdmin), cfg.Authorities.Candidates)

	authorities := app.Group("/authorities", cfg.AuthMiddleware.Handle)
	authorities.Get("", auth.RequireAnyRole(), cfg.Authorities.ListAuthorities)
	authorities.Get("/:id", auth.RequireAnyRole(), cfg.Authorities.GetAuthority)
	authorities.Get("/:id/performance", auth.RequireRole(domain.RoleAuthority, domain.RoleAdmin), cfg.Authorities.Performance)
	authorities.Post("", auth.RequireRole(domain.RoleAdmin), cfg.Authorities.CreateAuthority)
	authorities.Put("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Authorities.UpdateAuthority)
	authorities.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Authorities.DeleteAuthority)

	app.Get("/leaderboard", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Leaderboard.GetLeaderboard)
	app.Get("/users/:id/contributions", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Leaderboard.ContributionHistory)
	app.Get("/users/:id/score", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Leaderboard.CachedScore)
	app.Get("/stats/resolution-median", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Leaderboard.MedianResolution)
}
