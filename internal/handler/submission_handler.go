package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/middleware"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/service"
	"github.com/noah-isme/hms-api/internal/utils"
)

const defaultMaxUploadBytes = 1 << 20

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service        service.SubmissionService
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, maxUploadBytes int, logger zerolog.Logger) *SubmissionHandler {
	limit := int64(maxUploadBytes)
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	return &SubmissionHandler{
		service:        service,
		maxUploadBytes: limit,
		logger:         logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", middleware.RequireRole(models.RoleStudent), h.create)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var req dto.SubmissionListRequest
	var err error
	if req.HomeworkID, err = parseQueryUint(c, "homework_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.GroupID, err = parseQueryUint(c, "group_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.StudentID, err = parseQueryUint(c, "student_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.List(withRequestContext(c), activityActorFromContext(c), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	submission, err := h.service.Get(withRequestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	homeworkID, err := strconv.ParseUint(c.FormValue("homework_id"), 10, 64)
	if err != nil || homeworkID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid homework_id")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form required")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file is required")
	}

	payload := dto.SubmissionCreateRequest{HomeworkID: uint(homeworkID)}
	for _, header := range headers {
		if header.Size > h.maxUploadBytes {
			return utils.Fail(c, fiber.StatusRequestEntityTooLarge, "file too large", fiber.Map{"file": header.Filename})
		}
		file, err := header.Open()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "unable to read uploaded file")
		}
		content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
		file.Close()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "unable to read uploaded file")
		}
		if int64(len(content)) > h.maxUploadBytes {
			return utils.Fail(c, fiber.StatusRequestEntityTooLarge, "file too large", fiber.Map{"file": header.Filename})
		}
		payload.Files = append(payload.Files, dto.SubmissionFileUpload{Name: header.Filename, Content: content})
	}

	submission, err := h.service.Submit(withRequestContext(c), activityActorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrHomeworkNotFound),
		errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrGroupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSubmissionFilterRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubmissionForbidden), errors.Is(err, service.ErrHomeworkForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrHomeworkClosed):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrFileExtensionNotAllowed),
		errors.Is(err, service.ErrSubmissionNotText),
		errors.Is(err, service.ErrSubmissionTooLong):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		return sendValidationError(c, err)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("submission request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
