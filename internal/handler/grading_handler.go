package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/middleware"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/service"
	"github.com/noah-isme/hms-api/internal/utils"
)

type batchOperation func(ctx context.Context, actor service.ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error)

// GradingHandler wires grade review and reconciliation endpoints.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	teacherOnly := middleware.RequireRole(models.RoleTeacher)

	router.Get("", h.list)
	router.Post("/approve-ai", teacherOnly, h.batch("AI grades approved", h.service.ApproveAI))
	router.Post("/reset-teacher", teacherOnly, h.batch("teacher grades reset", h.service.ResetTeacher))
	router.Post("/mark-final", teacherOnly, h.batch("submissions finalized", h.service.MarkFinal))
	router.Get("/:id", h.get)
	router.Get("/:id/divergence", h.divergence)
	router.Patch("/:id", teacherOnly, h.update)
}

func (h *GradingHandler) batch(message string, operation batchOperation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload, err := parseBatch(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		result, err := operation(withRequestContext(c), activityActorFromContext(c), payload)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, message, result)
	}
}

func (h *GradingHandler) list(c *fiber.Ctx) error {
	var req dto.GradeListRequest
	var err error
	if req.GroupID, err = parseQueryUint(c, "group_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.HomeworkID, err = parseQueryUint(c, "homework_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.StudentID, err = parseQueryUint(c, "student_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grades, err := h.service.List(withRequestContext(c), activityActorFromContext(c), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "grades retrieved", grades)
}

func (h *GradingHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	grade, err := h.service.Get(withRequestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "grade retrieved", grade)
}

func (h *GradingHandler) divergence(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	divergence, err := h.service.Divergence(withRequestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "divergence computed", divergence)
}

func (h *GradingHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	grade, err := h.service.Update(withRequestContext(c), activityActorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "grade updated", grade)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrGradeNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrScoreOutOfRange), errors.Is(err, service.ErrInvalidScore):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return sendValidationError(c, err)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("grading request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
