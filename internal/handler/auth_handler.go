package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/middleware"
	"github.com/noah-isme/hms-api/internal/service"
	"github.com/noah-isme/hms-api/internal/utils"
)

// DeviceHeader names the client-supplied device label used for session admission.
const DeviceHeader = middleware.DeviceHeader

// AuthHandler exposes login and token refresh.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches auth routes. The optional guard runs before login only.
func (h *AuthHandler) Register(router fiber.Router, loginGuard ...fiber.Handler) {
	login := append(append([]fiber.Handler{}, loginGuard...), h.login)
	router.Post("/login", login...)
	router.Post("/refresh", h.refresh)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Login(withRequestContext(c), payload, deviceName(c), c.IP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		case errors.Is(err, service.ErrUserInactive):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case isValidationError(err):
			return sendValidationError(c, err)
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("login failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to log in")
		}
	}

	if result.Outcome == string(service.AdmissionReject) {
		return utils.SendSuccess(c, "session limit reached", result)
	}
	return utils.SendSuccess(c, "login successful", result)
}

func (h *AuthHandler) refresh(c *fiber.Ctx) error {
	var payload dto.RefreshRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	tokens, err := h.service.Refresh(withRequestContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrUserInactive):
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid refresh token")
		case isValidationError(err):
			return sendValidationError(c, err)
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("token refresh failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to refresh token")
		}
	}

	return utils.SendSuccess(c, "token refreshed", tokens)
}

func deviceName(c *fiber.Ctx) string {
	if device := strings.TrimSpace(c.Get(DeviceHeader)); device != "" {
		return device
	}
	return strings.TrimSpace(c.Get(fiber.HeaderUserAgent))
}
