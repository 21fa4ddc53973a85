package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrHomeworkClosed indicates the homework has not started or its deadline passed.
	ErrHomeworkClosed = errors.New("homework is not accepting submissions")
	// ErrFileExtensionNotAllowed indicates a file extension the homework does not accept.
	ErrFileExtensionNotAllowed = errors.New("file extension not allowed for this homework")
	// ErrSubmissionNotText indicates a file is not UTF-8 text.
	ErrSubmissionNotText = errors.New("submitted file is not a text file")
	// ErrSubmissionTooLong indicates a file exceeds the homework line limit.
	ErrSubmissionTooLong = errors.New("submitted file exceeds the line limit")
	// ErrSubmissionForbidden indicates the student is not in the homework's group.
	ErrSubmissionForbidden = errors.New("homework is not assigned to this student")
	// ErrSubmissionFilterRequired indicates a teacher listed submissions without a group or homework.
	ErrSubmissionFilterRequired = errors.New("group_id or homework_id is required")
)

// FileArchiver stores a copy of a submitted file and returns its URL.
type FileArchiver interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// SubmissionService ingests student files and lists submissions.
type SubmissionService interface {
	Submit(ctx context.Context, actor ActivityActor, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	List(ctx context.Context, actor ActivityActor, req dto.SubmissionListRequest) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, actor ActivityActor, id uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	homework    repository.HomeworkRepository
	users       repository.UserRepository
	validator   *validator.Validate
	archiver    FileArchiver
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService. archiver may be nil.
func NewSubmissionService(submissions repository.SubmissionRepository, homework repository.HomeworkRepository, users repository.UserRepository, validate *validator.Validate, archiver FileArchiver, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		homework:    homework,
		users:       users,
		validator:   validate,
		archiver:    archiver,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, actor ActivityActor, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/hms-api/internal/service/submission")
	ctx, span := tracer.Start(ctx, "submission.submit")
	span.SetAttributes(
		attribute.Int64("submission.homework_id", int64(payload.HomeworkID)),
		attribute.Int("submission.files", len(payload.Files)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	homework, err := s.homework.GetByID(ctx, payload.HomeworkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrHomeworkNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	student, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrUserNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	if student.GroupID == nil || *student.GroupID != homework.GroupID {
		span.SetStatus(codes.Error, "forbidden")
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	now := s.now().UTC()
	if !homework.IsOpen(now) {
		span.SetStatus(codes.Error, "homework_closed")
		return dto.SubmissionResponse{}, ErrHomeworkClosed
	}

	files := make([]models.SubmissionFile, 0, len(payload.Files))
	for _, upload := range payload.Files {
		file, err := buildSubmissionFile(homework, upload)
		if err != nil {
			span.SetStatus(codes.Error, "file_rejected")
			s.logger.Info().Err(err).Str("file", upload.Name).Uint("homework_id", homework.ID).Msg("submission file rejected")
			return dto.SubmissionResponse{}, err
		}
		files = append(files, file)
	}

	submission := models.Submission{
		HomeworkID:  homework.ID,
		StudentID:   student.ID,
		SubmittedAt: now,
		Files:       files,
	}
	if err := s.submissions.CreateWithFiles(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	s.archive(ctx, submission.Files)

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", created.ID).Uint("student_id", student.ID).Int("files", len(files)).Msg("submission created")
	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) List(ctx context.Context, actor ActivityActor, req dto.SubmissionListRequest) ([]dto.SubmissionResponse, error) {
	filter := repository.SubmissionFilter{
		HomeworkID: req.HomeworkID,
		GroupID:    req.GroupID,
		StudentID:  req.StudentID,
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if req.GroupID == nil && req.HomeworkID == nil {
			return nil, ErrSubmissionFilterRequired
		}
		if err := s.ensureTeaches(ctx, actor, req); err != nil {
			return nil, err
		}
	default:
		filter.StudentID = &actor.ID
	}

	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, actor ActivityActor, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if submission.Homework.TeacherID != actor.ID {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
	default:
		if submission.StudentID != actor.ID {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ensureTeaches(ctx context.Context, actor ActivityActor, req dto.SubmissionListRequest) error {
	if req.HomeworkID != nil {
		homework, err := s.homework.GetByID(ctx, *req.HomeworkID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHomeworkNotFound
			}
			return err
		}
		if homework.TeacherID != actor.ID {
			return ErrHomeworkForbidden
		}
	}
	if req.GroupID != nil {
		group, err := s.users.GetGroup(ctx, *req.GroupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if group.TeacherID == nil || *group.TeacherID != actor.ID {
			return ErrHomeworkForbidden
		}
	}
	return nil
}

// archive uploads copies of the stored files; failures leave ArchiveURL empty.
func (s *submissionService) archive(ctx context.Context, files []models.SubmissionFile) {
	if s.archiver == nil {
		return
	}
	for _, file := range files {
		url, err := s.archiver.Upload(ctx, file.FileName, strings.NewReader(file.Content))
		if err != nil {
			s.logger.Warn().Err(err).Uint("file_id", file.ID).Msg("failed to archive submission file")
			continue
		}
		if err := s.submissions.UpdateFileArchive(ctx, file.ID, url); err != nil {
			s.logger.Warn().Err(err).Uint("file_id", file.ID).Msg("failed to store archive url")
		}
	}
}

func buildSubmissionFile(homework models.Homework, upload dto.SubmissionFileUpload) (models.SubmissionFile, error) {
	name := filepath.Base(strings.TrimSpace(upload.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return models.SubmissionFile{}, fmt.Errorf("%w: missing file name", ErrFileExtensionNotAllowed)
	}
	if !homework.AcceptsFile(name) {
		return models.SubmissionFile{}, fmt.Errorf("%w: %s", ErrFileExtensionNotAllowed, name)
	}
	if !isTextContent(upload.Content) {
		return models.SubmissionFile{}, fmt.Errorf("%w: %s", ErrSubmissionNotText, name)
	}

	file := models.NewSubmissionFile(name, string(upload.Content))
	if homework.LineLimit > 0 && file.LineCount > homework.LineLimit {
		return models.SubmissionFile{}, fmt.Errorf("%w: %s has %d lines, limit %d", ErrSubmissionTooLong, name, file.LineCount, homework.LineLimit)
	}
	return file, nil
}

// isTextContent accepts valid UTF-8 whose detected MIME type descends from text/plain.
func isTextContent(content []byte) bool {
	if !utf8.Valid(content) || bytes.IndexByte(content, 0) >= 0 {
		return false
	}
	if len(content) == 0 {
		return true
	}
	for detected := mimetype.Detect(content); detected != nil; detected = detected.Parent() {
		if detected.Is("text/plain") {
			return true
		}
	}
	return false
}
