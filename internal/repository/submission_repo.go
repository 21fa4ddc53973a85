package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/hms-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	HomeworkID *uint
	GroupID    *uint
	StudentID  *uint
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	CreateWithFiles(ctx context.Context, submission *models.Submission) error
	UpdateFileArchive(ctx context.Context, fileID uint, url string) error
	MutateFinal(ctx context.Context, ids []uint, fn func(*models.Submission) bool) ([]models.Submission, error)
	OwnedBy(ctx context.Context, ids []uint, teacherID uint) ([]uint, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Homework").
		Preload("Student").
		Preload("Files", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("file_name ASC")
		}).
		Preload("Grade")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.HomeworkID != nil {
		query = query.Where("submissions.homework_id = ?", *filter.HomeworkID)
	}
	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}
	if filter.GroupID != nil {
		query = query.Where("submissions.homework_id IN (?)",
			r.db.Model(&models.Homework{}).Select("id").Where("group_id = ?", *filter.GroupID))
	}

	var submissions []models.Submission
	if err := query.Order("submissions.submitted_at DESC").Order("submissions.id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// CreateWithFiles stores the submission, its files and an empty grade row in one transaction.
func (r *submissionRepository) CreateWithFiles(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		files := submission.Files
		submission.Files = nil

		if err := tx.Omit(clause.Associations).Create(submission).Error; err != nil {
			return err
		}

		for i := range files {
			files[i].SubmissionID = submission.ID
		}
		if len(files) > 0 {
			if err := tx.Create(&files).Error; err != nil {
				return err
			}
		}
		submission.Files = files

		grade := models.Grade{SubmissionID: submission.ID}
		if err := tx.Omit(clause.Associations).Create(&grade).Error; err != nil {
			return err
		}
		submission.Grade = &grade

		return nil
	})
}

func (r *submissionRepository) UpdateFileArchive(ctx context.Context, fileID uint, url string) error {
	return r.db.WithContext(ctx).Model(&models.SubmissionFile{}).
		Where("id = ?", fileID).
		Update("archive_url", url).Error
}

func (r *submissionRepository) MutateFinal(ctx context.Context, ids []uint, fn func(*models.Submission) bool) ([]models.Submission, error) {
	return mutateLocked(ctx, r.db, ids, fn)
}

// OwnedBy returns the subset of submission ids whose homework is taught by teacherID.
func (r *submissionRepository) OwnedBy(ctx context.Context, ids []uint, teacherID uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var owned []uint
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Joins("JOIN homeworks ON homeworks.id = submissions.homework_id").
		Where("submissions.id IN ?", ids).
		Where("homeworks.teacher_id = ?", teacherID).
		Order("submissions.id ASC").
		Pluck("submissions.id", &owned).Error
	if err != nil {
		return nil, err
	}
	return owned, nil
}
