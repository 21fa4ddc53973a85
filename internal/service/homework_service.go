package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

var (
	// ErrHomeworkNotFound indicates the homework does not exist or is not visible to the actor.
	ErrHomeworkNotFound = errors.New("homework not found")
	// ErrHomeworkInvalidSchedule indicates the start date falls after the deadline.
	ErrHomeworkInvalidSchedule = errors.New("start date must not be after the deadline")
	// ErrHomeworkForbidden indicates the actor does not teach the homework's group.
	ErrHomeworkForbidden = errors.New("homework belongs to another teacher")
	// ErrGroupNotFound indicates the group does not exist.
	ErrGroupNotFound = errors.New("group not found")
	// ErrUnsupportedExtension indicates an extension outside the allowed catalogue.
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	// ErrInvalidDeadline indicates the deadline could not be parsed.
	ErrInvalidDeadline = errors.New("invalid deadline")
)

// DefaultDeadlineExtension is applied when ExtendDeadline receives no day count.
const DefaultDeadlineExtension = 7

// DuplicateTitleSuffix marks copies created by Duplicate.
const DuplicateTitleSuffix = " (copy)"

// HomeworkService manages homework for teachers and exposes it to students.
type HomeworkService interface {
	List(ctx context.Context, actor ActivityActor, req dto.HomeworkListRequest) (dto.HomeworkListResponse, error)
	Get(ctx context.Context, actor ActivityActor, id uint) (dto.HomeworkResponse, error)
	Create(ctx context.Context, actor ActivityActor, payload dto.HomeworkCreateRequest) (dto.HomeworkResponse, error)
	Update(ctx context.Context, actor ActivityActor, id uint, payload dto.HomeworkUpdateRequest) (dto.HomeworkResponse, error)
	Delete(ctx context.Context, actor ActivityActor, id uint) error
	Duplicate(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error)
	ExtendDeadline(ctx context.Context, actor ActivityActor, payload dto.ExtendDeadlineRequest) (dto.BatchResult, error)
}

type homeworkService struct {
	homework  repository.HomeworkRepository
	users     repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewHomeworkService constructs the homework service.
func NewHomeworkService(homework repository.HomeworkRepository, users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) HomeworkService {
	return &homeworkService{
		homework:  homework,
		users:     users,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "homework_service").Logger(),
		now:       time.Now,
	}
}

func (s *homeworkService) List(ctx context.Context, actor ActivityActor, req dto.HomeworkListRequest) (dto.HomeworkListResponse, error) {
	filter := repository.HomeworkFilter{
		GroupID:  req.GroupID,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filter.TeacherID = &actor.ID
	default:
		groupID, err := s.studentGroup(ctx, actor.ID)
		if err != nil {
			return dto.HomeworkListResponse{}, err
		}
		if groupID == nil {
			return dto.HomeworkListResponse{Items: []dto.HomeworkResponse{}, Pagination: paginate(req.Page, req.PageSize, 0)}, nil
		}
		filter.GroupID = groupID
	}

	items, total, err := s.homework.List(ctx, filter)
	if err != nil {
		return dto.HomeworkListResponse{}, err
	}

	now := s.now()
	includePrompt := actor.Role != models.RoleStudent
	responses := make([]dto.HomeworkResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewHomeworkResponse(item, now, includePrompt))
	}

	return dto.HomeworkListResponse{Items: responses, Pagination: paginate(req.Page, req.PageSize, total)}, nil
}

func (s *homeworkService) Get(ctx context.Context, actor ActivityActor, id uint) (dto.HomeworkResponse, error) {
	homework, err := s.load(ctx, id)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if homework.TeacherID != actor.ID {
			return dto.HomeworkResponse{}, ErrHomeworkNotFound
		}
	default:
		groupID, err := s.studentGroup(ctx, actor.ID)
		if err != nil {
			return dto.HomeworkResponse{}, err
		}
		if groupID == nil || *groupID != homework.GroupID {
			return dto.HomeworkResponse{}, ErrHomeworkNotFound
		}
	}

	return dto.NewHomeworkResponse(homework, s.now(), actor.Role != models.RoleStudent), nil
}

func (s *homeworkService) Create(ctx context.Context, actor ActivityActor, payload dto.HomeworkCreateRequest) (dto.HomeworkResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/hms-api/internal/service/homework")
	ctx, span := tracer.Start(ctx, "homework.create")
	span.SetAttributes(attribute.Int64("homework.group_id", int64(payload.GroupID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.HomeworkResponse{}, err
	}

	group, err := s.users.GetGroup(ctx, payload.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HomeworkResponse{}, ErrGroupNotFound
		}
		return dto.HomeworkResponse{}, err
	}
	if actor.Role != models.RoleAdmin && (group.TeacherID == nil || *group.TeacherID != actor.ID) {
		span.SetStatus(codes.Error, "forbidden")
		return dto.HomeworkResponse{}, ErrHomeworkForbidden
	}

	startDate, err := time.Parse(dto.DateLayout, payload.StartDate)
	if err != nil {
		return dto.HomeworkResponse{}, ErrHomeworkInvalidSchedule
	}
	deadline, err := ParseDeadline(payload.Deadline)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}
	extensions, err := normalizeExtensions(payload.FileExtensions)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}

	teacherID := actor.ID
	if group.TeacherID != nil {
		teacherID = *group.TeacherID
	}

	homework := models.Homework{
		Title:           strings.TrimSpace(payload.Title),
		Description:     strings.TrimSpace(payload.Description),
		Points:          payload.Points,
		StartDate:       startDate,
		Deadline:        deadline,
		LineLimit:       payload.LineLimit,
		FileExtensions:  extensions,
		TeacherID:       teacherID,
		GroupID:         group.ID,
		AIGradingPrompt: strings.TrimSpace(payload.AIGradingPrompt),
	}
	if !homework.ScheduleValid() {
		span.SetStatus(codes.Error, "invalid_schedule")
		return dto.HomeworkResponse{}, ErrHomeworkInvalidSchedule
	}

	if err := s.homework.Create(ctx, &homework); err != nil {
		span.RecordError(err)
		return dto.HomeworkResponse{}, err
	}

	s.audit(ctx, actor, "homework.created", homework.ID, map[string]interface{}{"group_id": homework.GroupID, "title": homework.Title})
	s.logger.Info().Uint("homework_id", homework.ID).Uint("actor_id", actor.ID).Msg("homework created")

	return dto.NewHomeworkResponse(homework, s.now(), true), nil
}

func (s *homeworkService) Update(ctx context.Context, actor ActivityActor, id uint, payload dto.HomeworkUpdateRequest) (dto.HomeworkResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.HomeworkResponse{}, err
	}

	homework, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}

	changes := map[string]interface{}{}
	if payload.Title != nil {
		homework.Title = strings.TrimSpace(*payload.Title)
		changes["title"] = homework.Title
	}
	if payload.Description != nil {
		homework.Description = strings.TrimSpace(*payload.Description)
		changes["description"] = true
	}
	if payload.Points != nil {
		homework.Points = *payload.Points
		changes["points"] = homework.Points
	}
	if payload.StartDate != nil {
		startDate, err := time.Parse(dto.DateLayout, *payload.StartDate)
		if err != nil {
			return dto.HomeworkResponse{}, ErrHomeworkInvalidSchedule
		}
		homework.StartDate = startDate
		changes["start_date"] = *payload.StartDate
	}
	if payload.Deadline != nil {
		deadline, err := ParseDeadline(*payload.Deadline)
		if err != nil {
			return dto.HomeworkResponse{}, err
		}
		homework.Deadline = deadline
		changes["deadline"] = deadline.Format(time.RFC3339)
	}
	if payload.LineLimit != nil {
		homework.LineLimit = *payload.LineLimit
		changes["line_limit"] = homework.LineLimit
	}
	if payload.FileExtensions != nil {
		extensions, err := normalizeExtensions(payload.FileExtensions)
		if err != nil {
			return dto.HomeworkResponse{}, err
		}
		homework.FileExtensions = extensions
		changes["file_extensions"] = []string(extensions)
	}
	if payload.AIGradingPrompt != nil {
		homework.AIGradingPrompt = strings.TrimSpace(*payload.AIGradingPrompt)
		changes["ai_grading_prompt"] = true
	}

	if !homework.ScheduleValid() {
		return dto.HomeworkResponse{}, ErrHomeworkInvalidSchedule
	}

	if err := s.homework.Update(ctx, &homework); err != nil {
		return dto.HomeworkResponse{}, err
	}

	s.audit(ctx, actor, "homework.updated", homework.ID, changes)
	return dto.NewHomeworkResponse(homework, s.now(), true), nil
}

func (s *homeworkService) Delete(ctx context.Context, actor ActivityActor, id uint) error {
	homework, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.homework.Delete(ctx, homework.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHomeworkNotFound
		}
		return err
	}

	s.audit(ctx, actor, "homework.deleted", homework.ID, map[string]interface{}{"title": homework.Title})
	return nil
}

// Duplicate copies every visible homework, appending DuplicateTitleSuffix to the title.
func (s *homeworkService) Duplicate(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BatchResult{}, err
	}

	originals, err := s.ownedBatch(ctx, actor, payload.IDs)
	if err != nil {
		return dto.BatchResult{}, err
	}

	copies := make([]models.Homework, 0, len(originals))
	for _, original := range originals {
		clone := original
		clone.ID = 0
		clone.Title = original.Title + DuplicateTitleSuffix
		clone.CreatedAt = time.Time{}
		clone.UpdatedAt = time.Time{}
		clone.Submissions = nil
		clone.FileExtensions = append(datatypes.JSONSlice[string](nil), original.FileExtensions...)
		copies = append(copies, clone)
	}

	result := dto.BatchResult{Requested: len(payload.IDs), IDs: []uint{}}
	if len(copies) == 0 {
		return result, nil
	}

	if err := s.homework.CreateBatch(ctx, copies); err != nil {
		return dto.BatchResult{}, err
	}

	for _, clone := range copies {
		result.IDs = append(result.IDs, clone.ID)
	}
	result.Affected = len(copies)

	s.audit(ctx, actor, "homework.duplicated", 0, map[string]interface{}{"source_ids": idsOf(originals), "copy_ids": result.IDs})
	return result, nil
}

// ExtendDeadline pushes each visible homework's deadline by the requested days.
func (s *homeworkService) ExtendDeadline(ctx context.Context, actor ActivityActor, payload dto.ExtendDeadlineRequest) (dto.BatchResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BatchResult{}, err
	}

	days := payload.Days
	if days == 0 {
		days = DefaultDeadlineExtension
	}

	items, err := s.ownedBatch(ctx, actor, payload.IDs)
	if err != nil {
		return dto.BatchResult{}, err
	}

	result := dto.BatchResult{Requested: len(payload.IDs), IDs: []uint{}}
	for i := range items {
		items[i].Deadline = items[i].Deadline.AddDate(0, 0, days)
		if err := s.homework.Update(ctx, &items[i]); err != nil {
			return dto.BatchResult{}, err
		}
		result.IDs = append(result.IDs, items[i].ID)
	}
	result.Affected = len(result.IDs)

	if result.Affected > 0 {
		s.audit(ctx, actor, "homework.deadline_extended", 0, map[string]interface{}{"ids": result.IDs, "days": days})
	}
	return result, nil
}

// ParseDeadline accepts RFC 3339 timestamps, "YYYY-MM-DDTHH:MM" or a bare date,
// which resolves to the last second of that day in UTC.
func ParseDeadline(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse("2006-01-02T15:04", value); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(dto.DateLayout, value); err == nil {
		return parsed.Add(24*time.Hour - time.Second), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDeadline, value)
}

func normalizeExtensions(values []string) (datatypes.JSONSlice[string], error) {
	if len(values) == 0 {
		return datatypes.JSONSlice[string]{models.DefaultExtension}, nil
	}

	seen := make(map[string]struct{}, len(values))
	normalized := make(datatypes.JSONSlice[string], 0, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !models.IsKnownExtension(ext) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, value)
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		normalized = append(normalized, ext)
	}
	return normalized, nil
}

func (s *homeworkService) load(ctx context.Context, id uint) (models.Homework, error) {
	homework, err := s.homework.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Homework{}, ErrHomeworkNotFound
		}
		return models.Homework{}, err
	}
	return homework, nil
}

func (s *homeworkService) loadOwned(ctx context.Context, actor ActivityActor, id uint) (models.Homework, error) {
	homework, err := s.load(ctx, id)
	if err != nil {
		return models.Homework{}, err
	}
	if actor.Role != models.RoleAdmin && homework.TeacherID != actor.ID {
		return models.Homework{}, ErrHomeworkForbidden
	}
	return homework, nil
}

// ownedBatch loads the requested homework, silently dropping ids the actor may not touch.
func (s *homeworkService) ownedBatch(ctx context.Context, actor ActivityActor, ids []uint) ([]models.Homework, error) {
	items, err := s.homework.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleAdmin {
		return items, nil
	}

	owned := items[:0]
	for _, item := range items {
		if item.TeacherID == actor.ID {
			owned = append(owned, item)
		}
	}
	return owned, nil
}

func (s *homeworkService) studentGroup(ctx context.Context, userID uint) (*uint, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user.GroupID, nil
}

func (s *homeworkService) audit(ctx context.Context, actor ActivityActor, action string, id uint, metadata map[string]interface{}) {
	entry := ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		Action:     action,
		EntityType: "homework",
		Metadata:   metadata,
	}
	if id > 0 {
		entry.EntityID = &id
	}
	recordActivity(ctx, s.activity, s.logger, entry)
}

func idsOf(items []models.Homework) []uint {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
