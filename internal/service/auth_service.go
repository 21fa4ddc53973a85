package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/repository"
)

var (
	// ErrInvalidCredentials indicates an unknown phone or a wrong password.
	ErrInvalidCredentials = errors.New("invalid phone or password")
	// ErrUserInactive indicates the account has been disabled.
	ErrUserInactive = errors.New("user account is inactive")
)

// AuthService verifies credentials and admits the login device.
type AuthService interface {
	Login(ctx context.Context, payload dto.LoginRequest, device, address string) (dto.LoginResponse, error)
	Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenPair, error)
}

type authService struct {
	users     repository.UserRepository
	sessions  SessionService
	tokens    *TokenIssuer
	validator *validator.Validate
	logger    zerolog.Logger
	dummyHash []byte
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, sessions SessionService, tokens *TokenIssuer, validate *validator.Validate, logger zerolog.Logger) AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("hms-dummy-password"), bcrypt.MinCost)
	return &authService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		dummyHash: dummy,
	}
}

// HashPassword returns the bcrypt hash stored for a user.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest, device, address string) (dto.LoginResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/hms-api/internal/service/auth")
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.LoginResponse{}, err
	}

	user, err := s.users.GetByPhone(ctx, strings.TrimSpace(payload.Phone))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Equalise timing with the wrong-password path.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(payload.Password))
			span.SetStatus(codes.Error, "invalid_credentials")
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		span.RecordError(err)
		return dto.LoginResponse{}, err
	}
	span.SetAttributes(attribute.Int64("auth.user_id", int64(user.ID)))

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		span.SetStatus(codes.Error, "invalid_credentials")
		s.logger.Info().Uint("user_id", user.ID).Msg("login rejected: wrong password")
		return dto.LoginResponse{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		span.SetStatus(codes.Error, "user_inactive")
		return dto.LoginResponse{}, ErrUserInactive
	}

	admission, err := s.sessions.Admit(ctx, user, device, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission_failed")
		return dto.LoginResponse{}, err
	}

	response := dto.LoginResponse{Outcome: string(admission.Outcome)}
	if admission.Outcome == AdmissionReject {
		response.Sessions = dto.NewSessionResponseSlice(admission.Sessions)
		return response, nil
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		span.RecordError(err)
		return dto.LoginResponse{}, err
	}

	session := dto.NewSessionResponse(admission.Session)
	userResponse := dto.NewUserResponse(user)
	response.Tokens = &tokens
	response.Session = &session
	response.User = &userResponse
	return response, nil
}

func (s *authService) Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenPair, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenPair{}, err
	}

	userID, err := s.tokens.ParseRefresh(payload.Refresh)
	if err != nil {
		return dto.TokenPair{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenPair{}, ErrInvalidToken
		}
		return dto.TokenPair{}, err
	}
	if !user.IsActive {
		return dto.TokenPair{}, ErrUserInactive
	}

	return s.tokens.IssueAccess(user)
}
