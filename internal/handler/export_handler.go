package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hms-api/internal/middleware"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
	"github.com/noah-isme/hms-api/internal/service"
	"github.com/noah-isme/hms-api/internal/utils"
)

// ExportHandler streams CSV and XLSX downloads.
type ExportHandler struct {
	service service.ExportService
	logger  zerolog.Logger
}

// NewExportHandler constructs the export handler.
func NewExportHandler(service service.ExportService, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		service: service,
		logger:  logger.With().Str("component", "export_handler").Logger(),
	}
}

// Register attaches export routes. The user roster is admin-only.
func (h *ExportHandler) Register(router fiber.Router) {
	router.Get("/users", middleware.RequireRole(models.RoleAdmin), h.users)
	router.Get("/groups/:id/grades", h.groupGrades)
}

func (h *ExportHandler) users(c *fiber.Ctx) error {
	filter := repository.UserFilter{
		Role:   models.ParseRole(c.Query("role")),
		Search: strings.TrimSpace(c.Query("search")),
	}
	groupID, err := parseQueryUint(c, "group_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	filter.GroupID = groupID

	file, err := h.service.Users(withRequestContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return sendFile(c, file)
}

func (h *ExportHandler) groupGrades(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	format := strings.ToLower(strings.TrimSpace(c.Query("format", service.ExportFormatCSV)))

	file, err := h.service.GroupGrades(withRequestContext(c), activityActorFromContext(c), id, format)
	if err != nil {
		return h.handleError(c, err)
	}
	return sendFile(c, file)
}

func (h *ExportHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnsupportedExportFormat):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGroupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrLeaderboardForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "export failed")
	}
}

func sendFile(c *fiber.Ctx, file service.ExportFile) error {
	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.Status(fiber.StatusOK).Send(file.Data)
}
