package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/middleware"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/service"
	"github.com/noah-isme/hms-api/internal/utils"
)

// LeaderboardHandler serves group rankings and a student's own grade history.
type LeaderboardHandler struct {
	service service.LeaderboardService
	logger  zerolog.Logger
}

// NewLeaderboardHandler constructs the leaderboard handler.
func NewLeaderboardHandler(service service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register attaches leaderboard routes.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("/groups/:id", h.group)
	router.Get("/me", middleware.RequireRole(models.RoleStudent), h.mine)
}

func (h *LeaderboardHandler) group(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	leaderboard, err := h.service.Group(withRequestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "leaderboard retrieved", leaderboard)
}

func (h *LeaderboardHandler) mine(c *fiber.Ctx) error {
	var filter dto.StudentGradesFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	grades, err := h.service.StudentGrades(withRequestContext(c), activityActorFromContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "grades retrieved", grades)
}

func (h *LeaderboardHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrGroupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrLeaderboardForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case isValidationError(err):
		return sendValidationError(c, err)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("leaderboard request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
