package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hms-api/internal/config"
	"github.com/noah-isme/hms-api/internal/handler"
	"github.com/noah-isme/hms-api/internal/middleware"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler        *handler.AuthHandler
	SessionHandler     *handler.SessionHandler
	GroupHandler       *handler.GroupHandler
	HomeworkHandler    *handler.HomeworkHandler
	SubmissionHandler  *handler.SubmissionHandler
	GradingHandler     *handler.GradingHandler
	LeaderboardHandler *handler.LeaderboardHandler
	ExportHandler      *handler.ExportHandler
	ActivityHandler    *handler.ActivityHandler
	JWTMiddleware      fiber.Handler
	LoginRateLimiter   fiber.Handler
	Logger             zerolog.Logger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(deps.Logger))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		var guards []fiber.Handler
		if deps.LoginRateLimiter != nil {
			guards = append(guards, deps.LoginRateLimiter)
		}
		deps.AuthHandler.Register(api.Group("/auth"), guards...)
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions", jwtMiddleware))
	}

	if deps.GroupHandler != nil {
		deps.GroupHandler.Register(api.Group("/groups", jwtMiddleware))
	}

	if deps.HomeworkHandler != nil {
		deps.HomeworkHandler.Register(api.Group("/homework", jwtMiddleware))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions", jwtMiddleware))
	}

	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(api.Group("/grades", jwtMiddleware))
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(api.Group("/leaderboard", jwtMiddleware))
	}

	if deps.ExportHandler != nil {
		deps.ExportHandler.Register(api.Group("/exports", jwtMiddleware, middleware.RequireRole(models.RoleTeacher)))
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activity", jwtMiddleware, middleware.RequireRole(models.RoleAdmin)))
	}
}
