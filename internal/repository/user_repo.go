package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/models"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role    models.Role
	GroupID *uint
	Search  string
}

// UserRepository provides persistence for accounts and their groups.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByPhone(ctx context.Context, phone string) (models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	GetGroup(ctx context.Context, id uint) (models.Group, error)
	ListGroupsByTeacher(ctx context.Context, teacherID uint) ([]models.Group, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Group").First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("phone = ?", strings.TrimSpace(phone)).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Preload("Group")

	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.GroupID != nil {
		query = query.Where("group_id = ?", *filter.GroupID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR phone LIKE ?", pattern, pattern)
	}

	var users []models.User
	if err := query.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) GetGroup(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Course").First(&group, id).Error; err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (r *userRepository) ListGroupsByTeacher(ctx context.Context, teacherID uint) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Where("teacher_id = ?", teacherID).
		Order("name ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
