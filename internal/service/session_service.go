package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/config"
	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/observability"
	"github.com/noah-isme/hms-api/internal/repository"
)

var (
	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionForbidden indicates the actor neither owns the session nor is an admin.
	ErrSessionForbidden = errors.New("session belongs to another user")
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// UnknownDevice is recorded when a client sends no device name.
const UnknownDevice = "unknown"

const maxDeviceNameLength = 200

// AdmissionOutcome is the decision taken for a login on a device.
type AdmissionOutcome string

const (
	AdmissionReuse  AdmissionOutcome = "reuse"
	AdmissionCreate AdmissionOutcome = "create"
	AdmissionReject AdmissionOutcome = "reject"
)

// AdmissionResult carries the admitted session, or the listing on rejection.
type AdmissionResult struct {
	Outcome  AdmissionOutcome
	Session  models.Session
	Sessions []models.Session
}

// SessionService decides whether a login may open a device session.
type SessionService interface {
	Admit(ctx context.Context, user models.User, device, address string) (AdmissionResult, error)
	List(ctx context.Context, actor ActivityActor, userID uint) ([]dto.SessionResponse, error)
	Delete(ctx context.Context, actor ActivityActor, sessionID uint) error
}

type sessionService struct {
	repo     repository.SessionRepository
	locker   *redisLocker
	scope    string
	activity ActivityRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

// SessionServiceOptions tunes admission.
type SessionServiceOptions struct {
	// DeviceScope is config.SessionScopeGlobal (device names match across all
	// users) or config.SessionScopeUser.
	DeviceScope string
	LockTTL     time.Duration
}

// NewSessionService constructs the admission service. A nil redis client
// leaves serialisation to the database row lock alone.
func NewSessionService(repo repository.SessionRepository, cache *redis.Client, opts SessionServiceOptions, activity ActivityRecorder, logger zerolog.Logger) SessionService {
	svc := &sessionService{
		repo:     repo,
		scope:    opts.DeviceScope,
		activity: activity,
		logger:   logger.With().Str("component", "session_service").Logger(),
		now:      time.Now,
	}
	if svc.scope == "" {
		svc.scope = config.SessionScopeGlobal
	}
	if cache != nil {
		svc.locker = newRedisLocker(cache, opts.LockTTL)
	}
	return svc
}

// NormalizeDevice trims the device name and substitutes UnknownDevice for blanks.
func NormalizeDevice(device string) string {
	device = strings.TrimSpace(device)
	if device == "" {
		return UnknownDevice
	}
	if len(device) > maxDeviceNameLength {
		cut := maxDeviceNameLength
		for cut > 0 && !utf8.RuneStart(device[cut]) {
			cut--
		}
		device = device[:cut]
	}
	return device
}

func (s *sessionService) Admit(ctx context.Context, user models.User, device, address string) (AdmissionResult, error) {
	tracer := otel.Tracer("github.com/noah-isme/hms-api/internal/service/session")
	ctx, span := tracer.Start(ctx, "session.admit")
	span.SetAttributes(attribute.Int64("session.user_id", int64(user.ID)))
	defer span.End()

	device = NormalizeDevice(device)

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, fmt.Sprintf("lock:admission:user:%d", user.ID))
		switch {
		case errors.Is(err, errLockHeld):
			span.AddEvent("admission_lock_contended")
			observability.SessionAdmissions().WithLabelValues("contended").Inc()
			s.logger.Warn().Uint("user_id", user.ID).Msg("admission lock held elsewhere, waiting on row lock")
		case err != nil:
			s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("admission lock unavailable, relying on row lock")
		default:
			defer release()
		}
	}

	var deviceOwner *uint
	if s.scope == config.SessionScopeUser {
		deviceOwner = &user.ID
	}

	var result AdmissionResult
	err := s.repo.WithUserLock(ctx, user.ID, func(tx repository.SessionTx) error {
		now := s.now().UTC()

		existing, found, err := tx.FindByDevice(device, deviceOwner)
		if err != nil {
			return err
		}
		if found {
			if err := tx.Touch(existing.ID, now); err != nil {
				return err
			}
			existing.LastSeenAt = now
			result = AdmissionResult{Outcome: AdmissionReuse, Session: existing}
			return tx.TouchUserLogin(user.ID, now)
		}

		sessions, err := tx.ListByUser(user.ID)
		if err != nil {
			return err
		}
		if len(sessions) >= models.MaxSessionsPerUser {
			result = AdmissionResult{Outcome: AdmissionReject, Sessions: sessions}
			return tx.TouchUserLogin(user.ID, now)
		}

		session := models.Session{
			UserID:     user.ID,
			DeviceName: device,
			IPAddress:  strings.TrimSpace(address),
			CreatedAt:  now,
			LastSeenAt: now,
		}
		if err := tx.Create(&session); err != nil {
			return err
		}
		result = AdmissionResult{Outcome: AdmissionCreate, Session: session}
		return tx.TouchUserLogin(user.ID, now)
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "user_not_found")
			return AdmissionResult{}, ErrUserNotFound
		}
		span.SetStatus(codes.Error, "admission_failed")
		return AdmissionResult{}, err
	}

	span.SetAttributes(attribute.String("session.outcome", string(result.Outcome)))
	observability.SessionAdmissions().WithLabelValues(string(result.Outcome)).Inc()

	event := s.logger.Info()
	if result.Outcome == AdmissionReject {
		event = s.logger.Warn()
	}
	if result.Outcome == AdmissionReuse && result.Session.UserID != user.ID {
		event = s.logger.Warn().Uint("session_owner_id", result.Session.UserID)
	}
	event.Uint("user_id", user.ID).Str("device", device).Str("outcome", string(result.Outcome)).Msg("session admission")

	return result, nil
}

func (s *sessionService) List(ctx context.Context, actor ActivityActor, userID uint) ([]dto.SessionResponse, error) {
	if actor.ID != userID && !models.HasRole(actor.Identity(), models.RoleAdmin) {
		return nil, ErrSessionForbidden
	}

	sessions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewSessionResponseSlice(sessions), nil
}

func (s *sessionService) Delete(ctx context.Context, actor ActivityActor, sessionID uint) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if session.UserID != actor.ID && !models.HasRole(actor.Identity(), models.RoleAdmin) {
		return ErrSessionForbidden
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	id := session.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		Action:     "session.deleted",
		EntityType: "session",
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"user_id": session.UserID,
			"device":  session.DeviceName,
		},
	})

	s.logger.Info().Uint("session_id", id).Uint("actor_id", actor.ID).Msg("session deleted")
	return nil
}
