package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/hms-api/internal/models"
)

// GradeRecord is a grade joined with the submission context it belongs to.
type GradeRecord struct {
	Grade        models.Grade
	SubmissionID uint
	HomeworkID   uint
	Homework     string
	GroupID      uint
	TeacherID    uint
	StudentID    uint
	StudentName  string
	SubmittedAt  time.Time
}

// GradeRecordFilter narrows joined grade listings.
type GradeRecordFilter struct {
	GroupID    *uint
	HomeworkID *uint
	StudentID  *uint
	From       *time.Time
	To         *time.Time
}

// GradeRepository persists grades and applies reconciliation updates.
type GradeRepository interface {
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	Update(ctx context.Context, grade *models.Grade) error
	Mutate(ctx context.Context, ids []uint, fn func(*models.Grade) bool) ([]models.Grade, error)
	ListRecords(ctx context.Context, filter GradeRecordFilter) ([]GradeRecord, error)
	OwnedBy(ctx context.Context, ids []uint, teacherID uint) ([]uint, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs the grade repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).First(&grade, id).Error; err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (r *gradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(grade).Error
}

func (r *gradeRepository) Mutate(ctx context.Context, ids []uint, fn func(*models.Grade) bool) ([]models.Grade, error) {
	return mutateLocked(ctx, r.db, ids, fn)
}

func (r *gradeRepository) ListRecords(ctx context.Context, filter GradeRecordFilter) ([]GradeRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Grade").
		Preload("Homework").
		Preload("Student").
		Joins("JOIN grades ON grades.submission_id = submissions.id")

	if filter.GroupID != nil {
		query = query.Where("submissions.homework_id IN (?)",
			r.db.Model(&models.Homework{}).Select("id").Where("group_id = ?", *filter.GroupID))
	}
	if filter.HomeworkID != nil {
		query = query.Where("submissions.homework_id = ?", *filter.HomeworkID)
	}
	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}
	if filter.From != nil {
		query = query.Where("grades.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("grades.created_at < ?", *filter.To)
	}

	var submissions []models.Submission
	if err := query.Order("submissions.id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	records := make([]GradeRecord, 0, len(submissions))
	for _, submission := range submissions {
		if submission.Grade == nil {
			continue
		}
		records = append(records, GradeRecord{
			Grade:        *submission.Grade,
			SubmissionID: submission.ID,
			HomeworkID:   submission.HomeworkID,
			Homework:     submission.Homework.Title,
			GroupID:      submission.Homework.GroupID,
			TeacherID:    submission.Homework.TeacherID,
			StudentID:    submission.StudentID,
			StudentName:  submission.Student.FullName,
			SubmittedAt:  submission.SubmittedAt,
		})
	}

	return records, nil
}

// OwnedBy returns the subset of grade ids whose homework is taught by teacherID.
func (r *gradeRepository) OwnedBy(ctx context.Context, ids []uint, teacherID uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var owned []uint
	err := r.db.WithContext(ctx).Model(&models.Grade{}).
		Joins("JOIN submissions ON submissions.id = grades.submission_id").
		Joins("JOIN homeworks ON homeworks.id = submissions.homework_id").
		Where("grades.id IN ?", ids).
		Where("homeworks.teacher_id = ?", teacherID).
		Order("grades.id ASC").
		Pluck("grades.id", &owned).Error
	if err != nil {
		return nil, err
	}
	return owned, nil
}
