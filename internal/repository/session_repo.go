package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/hms-api/internal/models"
)

// SessionTx exposes the session operations available while a user's row is locked.
type SessionTx interface {
	// FindByDevice looks up a session by device name. A nil userID searches every user.
	FindByDevice(device string, userID *uint) (models.Session, bool, error)
	ListByUser(userID uint) ([]models.Session, error)
	Create(session *models.Session) error
	Touch(sessionID uint, at time.Time) error
	TouchUserLogin(userID uint, at time.Time) error
}

// SessionRepository persists device sessions.
type SessionRepository interface {
	WithUserLock(ctx context.Context, userID uint, fn func(tx SessionTx) error) error
	ListByUser(ctx context.Context, userID uint) ([]models.Session, error)
	GetByID(ctx context.Context, id uint) (models.Session, error)
	Delete(ctx context.Context, id uint) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs the session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// WithUserLock runs fn in a transaction holding a row lock on the user, so the
// count-then-insert sequence of admission cannot interleave for the same user.
func (r *sessionRepository) WithUserLock(ctx context.Context, userID uint, fn func(tx SessionTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&user, userID).Error; err != nil {
			return err
		}
		return fn(&sessionTx{tx: tx})
	})
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Session, error) {
	return listSessions(r.db.WithContext(ctx), userID)
}

func (r *sessionRepository) GetByID(ctx context.Context, id uint) (models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Session{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type sessionTx struct {
	tx *gorm.DB
}

func (s *sessionTx) FindByDevice(device string, userID *uint) (models.Session, bool, error) {
	query := s.tx.Where("device_name = ?", device)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var session models.Session
	err := query.Order("id ASC").First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, err
	}
	return session, true, nil
}

func (s *sessionTx) ListByUser(userID uint) ([]models.Session, error) {
	return listSessions(s.tx, userID)
}

func (s *sessionTx) Create(session *models.Session) error {
	return s.tx.Omit(clause.Associations).Create(session).Error
}

func (s *sessionTx) Touch(sessionID uint, at time.Time) error {
	return s.tx.Model(&models.Session{}).Where("id = ?", sessionID).Update("last_seen_at", at).Error
}

func (s *sessionTx) TouchUserLogin(userID uint, at time.Time) error {
	return s.tx.Model(&models.User{}).Where("id = ?", userID).Update("last_login_at", at).Error
}

func listSessions(db *gorm.DB, userID uint) ([]models.Session, error) {
	var sessions []models.Session
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
