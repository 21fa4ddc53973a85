package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/models"
)

// HomeworkFilter narrows homework queries.
type HomeworkFilter struct {
	TeacherID *uint
	GroupID   *uint
	Search    string
	Page      int
	PageSize  int
}

// HomeworkRepository defines persistence operations for homework.
type HomeworkRepository interface {
	List(ctx context.Context, filter HomeworkFilter) ([]models.Homework, int64, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Homework, error)
	GetByID(ctx context.Context, id uint) (models.Homework, error)
	Create(ctx context.Context, homework *models.Homework) error
	CreateBatch(ctx context.Context, homework []models.Homework) error
	Update(ctx context.Context, homework *models.Homework) error
	Delete(ctx context.Context, id uint) error
}

type homeworkRepository struct {
	db *gorm.DB
}

// NewHomeworkRepository instantiates a GORM-backed repository.
func NewHomeworkRepository(db *gorm.DB) HomeworkRepository {
	return &homeworkRepository{db: db}
}

func (r *homeworkRepository) List(ctx context.Context, filter HomeworkFilter) ([]models.Homework, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Homework{})

	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.GroupID != nil {
		query = query.Where("group_id = ?", *filter.GroupID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var homework []models.Homework
	if err := query.Order("created_at DESC").Order("id DESC").Find(&homework).Error; err != nil {
		return nil, 0, err
	}

	return homework, total, nil
}

func (r *homeworkRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Homework, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var homework []models.Homework
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&homework).Error; err != nil {
		return nil, err
	}
	return homework, nil
}

func (r *homeworkRepository) GetByID(ctx context.Context, id uint) (models.Homework, error) {
	var homework models.Homework
	if err := r.db.WithContext(ctx).First(&homework, id).Error; err != nil {
		return models.Homework{}, err
	}
	return homework, nil
}

func (r *homeworkRepository) Create(ctx context.Context, homework *models.Homework) error {
	return r.db.WithContext(ctx).Omit("Teacher", "Group").Create(homework).Error
}

func (r *homeworkRepository) CreateBatch(ctx context.Context, homework []models.Homework) error {
	if len(homework) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Teacher", "Group").Create(&homework).Error
}

func (r *homeworkRepository) Update(ctx context.Context, homework *models.Homework) error {
	return r.db.WithContext(ctx).Omit("Teacher", "Group").Save(homework).Error
}

func (r *homeworkRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Homework{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
