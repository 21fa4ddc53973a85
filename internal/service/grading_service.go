package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/events"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/observability"
	"github.com/noah-isme/hms-api/internal/repository"
)

var (
	// ErrGradeNotFound indicates the grade does not exist or is not visible to the actor.
	ErrGradeNotFound = errors.New("grade not found")
	// ErrScoreOutOfRange indicates a score outside [0, 100].
	ErrScoreOutOfRange = errors.New("score must be between 0 and 100")
	// ErrInvalidScore indicates a score that is not a decimal number.
	ErrInvalidScore = errors.New("score must be a decimal number")
)

var (
	minScore = decimal.Zero
	maxScore = decimal.NewFromInt(100)
)

// Reconciliation operations, used as metric labels and audit actions.
const (
	opApproveAI    = "approve_ai"
	opResetTeacher = "reset_teacher"
	opMarkFinal    = "mark_final"
	opUpdate       = "update"
)

// GradingService reconciles AI scores with teacher reviews.
type GradingService interface {
	ApproveAI(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error)
	ResetTeacher(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error)
	MarkFinal(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error)
	Update(ctx context.Context, actor ActivityActor, gradeID uint, payload dto.GradeUpdateRequest) (dto.GradeResponse, error)
	Get(ctx context.Context, actor ActivityActor, gradeID uint) (dto.GradeResponse, error)
	Divergence(ctx context.Context, actor ActivityActor, gradeID uint) (dto.DivergenceResponse, error)
	List(ctx context.Context, actor ActivityActor, req dto.GradeListRequest) ([]dto.GradeRecordResponse, error)
}

type gradingService struct {
	grades      repository.GradeRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	publisher   events.Publisher
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(grades repository.GradeRepository, submissions repository.SubmissionRepository, validate *validator.Validate, activity ActivityRecorder, publisher events.Publisher, logger zerolog.Logger) GradingService {
	return &gradingService{
		grades:      grades,
		submissions: submissions,
		validator:   validate,
		activity:    activity,
		publisher:   publisher,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) tracer() trace.Tracer {
	return otel.Tracer("github.com/noah-isme/hms-api/internal/service/grading")
}

// ApproveAI adopts the AI scores on every grade that has an AI total and no
// teacher total. Only grades that changed are counted.
func (s *gradingService) ApproveAI(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error) {
	ctx, span := s.tracer().Start(ctx, "grading.approve_ai")
	defer span.End()

	return s.mutateGrades(ctx, span, actor, payload, opApproveAI, events.GradeApproved, func(grade *models.Grade) bool {
		return grade.ApproveAI(actor.ID)
	})
}

// ResetTeacher clears the teacher side of every matched grade. Matched grades
// count as affected even when they held no teacher scores.
func (s *gradingService) ResetTeacher(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error) {
	ctx, span := s.tracer().Start(ctx, "grading.reset_teacher")
	defer span.End()

	return s.mutateGrades(ctx, span, actor, payload, opResetTeacher, events.GradeReset, func(grade *models.Grade) bool {
		grade.ResetTeacher()
		return true
	})
}

// MarkFinal promotes the AI grade to the final grade on submissions without one.
func (s *gradingService) MarkFinal(ctx context.Context, actor ActivityActor, payload dto.BatchRequest) (dto.BatchResult, error) {
	ctx, span := s.tracer().Start(ctx, "grading.mark_final")
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BatchResult{}, err
	}

	ids, err := s.scopeSubmissions(ctx, actor, payload.IDs)
	if err != nil {
		span.RecordError(err)
		return dto.BatchResult{}, err
	}

	changed, err := s.submissions.MutateFinal(ctx, ids, func(submission *models.Submission) bool {
		return submission.MarkFinal()
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark_final_failed")
		return dto.BatchResult{}, err
	}

	result := dto.BatchResult{Requested: len(payload.IDs), Affected: len(changed), IDs: make([]uint, 0, len(changed))}
	for _, submission := range changed {
		result.IDs = append(result.IDs, submission.ID)
		s.publish(ctx, events.GradeEvent{Type: events.GradeFinalized, SubmissionID: submission.ID, GroupID: submission.Homework.GroupID, ActorID: actor.ID})
	}

	s.finishBatch(ctx, span, actor, opMarkFinal, "submission", result)
	return result, nil
}

func (s *gradingService) Update(ctx context.Context, actor ActivityActor, gradeID uint, payload dto.GradeUpdateRequest) (dto.GradeResponse, error) {
	ctx, span := s.tracer().Start(ctx, "grading.update")
	span.SetAttributes(
		attribute.Int64("grading.grade_id", int64(gradeID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	grade, err := s.loadVisible(ctx, actor, gradeID)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	scores := []struct {
		field  string
		value  *string
		target *decimal.NullDecimal
	}{
		{"final_task_completeness", payload.FinalTaskCompleteness, &grade.FinalTaskCompleteness},
		{"final_code_quality", payload.FinalCodeQuality, &grade.FinalCodeQuality},
		{"final_correctness", payload.FinalCorrectness, &grade.FinalCorrectness},
		{"teacher_total", payload.TeacherTotal, &grade.TeacherTotal},
	}

	changes := map[string]interface{}{}
	for _, score := range scores {
		if score.value == nil {
			continue
		}
		parsed, err := ParseScore(*score.value)
		if err != nil {
			span.SetStatus(codes.Error, "invalid_score")
			return dto.GradeResponse{}, fmt.Errorf("%s: %w", score.field, err)
		}
		*score.target = decimal.NullDecimal{Decimal: parsed, Valid: true}
		changes[score.field] = parsed.StringFixed(models.ScorePlaces)
	}

	feedback := []struct {
		field  string
		value  *string
		target *string
	}{
		{"task_completeness_feedback", payload.TaskCompletenessFeedback, &grade.TaskCompletenessFeedback},
		{"code_quality_feedback", payload.CodeQualityFeedback, &grade.CodeQualityFeedback},
		{"correctness_feedback", payload.CorrectnessFeedback, &grade.CorrectnessFeedback},
	}
	for _, item := range feedback {
		if item.value == nil {
			continue
		}
		*item.target = strings.TrimSpace(s.sanitizer.Sanitize(*item.value))
		changes[item.field] = true
	}

	if len(changes) == 0 {
		return dto.NewGradeResponse(grade), nil
	}

	modifier := actor.ID
	grade.ModifiedByTeacherID = &modifier

	if err := s.grades.Update(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_update_failed")
		return dto.GradeResponse{}, err
	}

	divergence := grade.Divergence()
	observability.GradeReconciliation().WithLabelValues(opUpdate).Inc()
	observability.DivergenceBands().WithLabelValues(string(divergence.Band)).Inc()
	span.SetAttributes(attribute.String("grading.band", string(divergence.Band)))

	id := grade.ID
	changes["band"] = string(divergence.Band)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		Action:     "grade.updated",
		EntityType: "grade",
		EntityID:   &id,
		Metadata:   changes,
	})
	s.publish(ctx, events.GradeEvent{Type: events.GradeUpdated, GradeID: grade.ID, SubmissionID: grade.SubmissionID, ActorID: actor.ID})

	s.logger.Info().Uint("grade_id", grade.ID).Uint("actor_id", actor.ID).Str("band", string(divergence.Band)).Msg("grade updated")
	return dto.NewGradeResponse(grade), nil
}

func (s *gradingService) Get(ctx context.Context, actor ActivityActor, gradeID uint) (dto.GradeResponse, error) {
	grade, err := s.loadVisible(ctx, actor, gradeID)
	if err != nil {
		return dto.GradeResponse{}, err
	}
	return dto.NewGradeResponse(grade), nil
}

func (s *gradingService) Divergence(ctx context.Context, actor ActivityActor, gradeID uint) (dto.DivergenceResponse, error) {
	ctx, span := s.tracer().Start(ctx, "grading.divergence")
	span.SetAttributes(attribute.Int64("grading.grade_id", int64(gradeID)))
	defer span.End()

	grade, err := s.loadVisible(ctx, actor, gradeID)
	if err != nil {
		span.RecordError(err)
		return dto.DivergenceResponse{}, err
	}

	response := dto.NewDivergenceResponse(grade)
	observability.DivergenceBands().WithLabelValues(response.Band).Inc()
	span.SetAttributes(attribute.String("grading.band", response.Band))
	return response, nil
}

func (s *gradingService) List(ctx context.Context, actor ActivityActor, req dto.GradeListRequest) ([]dto.GradeRecordResponse, error) {
	filter := repository.GradeRecordFilter{
		GroupID:    req.GroupID,
		HomeworkID: req.HomeworkID,
		StudentID:  req.StudentID,
	}

	if actor.Role == models.RoleStudent {
		filter.StudentID = &actor.ID
	}

	records, err := s.grades.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GradeRecordResponse, 0, len(records))
	for _, record := range records {
		if actor.Role == models.RoleTeacher && record.TeacherID != actor.ID {
			continue
		}
		responses = append(responses, newGradeRecordResponse(record))
	}
	return responses, nil
}

// ParseScore parses a decimal score, rounds it to two places and checks [0, 100].
func ParseScore(value string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, ErrInvalidScore
	}
	parsed = models.RoundScore(parsed)
	if parsed.LessThan(minScore) || parsed.GreaterThan(maxScore) {
		return decimal.Decimal{}, ErrScoreOutOfRange
	}
	return parsed, nil
}

func (s *gradingService) mutateGrades(ctx context.Context, span trace.Span, actor ActivityActor, payload dto.BatchRequest, operation, eventType string, fn func(*models.Grade) bool) (dto.BatchResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BatchResult{}, err
	}

	ids, err := s.scopeGrades(ctx, actor, payload.IDs)
	if err != nil {
		span.RecordError(err)
		return dto.BatchResult{}, err
	}

	changed, err := s.grades.Mutate(ctx, ids, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+"_failed")
		return dto.BatchResult{}, err
	}

	result := dto.BatchResult{Requested: len(payload.IDs), Affected: len(changed), IDs: make([]uint, 0, len(changed))}
	for _, grade := range changed {
		result.IDs = append(result.IDs, grade.ID)
		s.publish(ctx, events.GradeEvent{Type: eventType, GradeID: grade.ID, SubmissionID: grade.SubmissionID, ActorID: actor.ID})
	}

	s.finishBatch(ctx, span, actor, operation, "grade", result)
	return result, nil
}

func (s *gradingService) finishBatch(ctx context.Context, span trace.Span, actor ActivityActor, operation, entityType string, result dto.BatchResult) {
	span.SetAttributes(
		attribute.Int("grading.requested", result.Requested),
		attribute.Int("grading.affected", result.Affected),
	)
	observability.GradeReconciliation().WithLabelValues(operation).Add(float64(result.Affected))

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		Action:     "grade." + operation,
		EntityType: entityType,
		Metadata: map[string]interface{}{
			"requested": result.Requested,
			"affected":  result.Affected,
			"ids":       result.IDs,
		},
	})

	s.logger.Info().
		Str("operation", operation).
		Uint("actor_id", actor.ID).
		Int("requested", result.Requested).
		Int("affected", result.Affected).
		Msg("grade batch applied")
}

func (s *gradingService) publish(ctx context.Context, event events.GradeEvent) {
	if s.publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.publisher.PublishGrade(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish grade event")
	}
}

func (s *gradingService) scopeGrades(ctx context.Context, actor ActivityActor, ids []uint) ([]uint, error) {
	if actor.Role == models.RoleAdmin {
		return ids, nil
	}
	return s.grades.OwnedBy(ctx, ids, actor.ID)
}

func (s *gradingService) scopeSubmissions(ctx context.Context, actor ActivityActor, ids []uint) ([]uint, error) {
	if actor.Role == models.RoleAdmin {
		return ids, nil
	}
	return s.submissions.OwnedBy(ctx, ids, actor.ID)
}

func (s *gradingService) loadVisible(ctx context.Context, actor ActivityActor, gradeID uint) (models.Grade, error) {
	grade, err := s.grades.GetByID(ctx, gradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Grade{}, ErrGradeNotFound
		}
		return models.Grade{}, err
	}

	if actor.Role == models.RoleAdmin {
		return grade, nil
	}

	if actor.Role == models.RoleStudent {
		submission, err := s.submissions.GetByID(ctx, grade.SubmissionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Grade{}, ErrGradeNotFound
			}
			return models.Grade{}, err
		}
		if submission.StudentID != actor.ID {
			return models.Grade{}, ErrGradeNotFound
		}
		return grade, nil
	}

	owned, err := s.grades.OwnedBy(ctx, []uint{gradeID}, actor.ID)
	if err != nil {
		return models.Grade{}, err
	}
	if len(owned) == 0 {
		return models.Grade{}, ErrGradeNotFound
	}
	return grade, nil
}

func newGradeRecordResponse(record repository.GradeRecord) dto.GradeRecordResponse {
	return dto.GradeRecordResponse{
		GradeResponse: dto.NewGradeResponse(record.Grade),
		HomeworkID:    record.HomeworkID,
		HomeworkTitle: record.Homework,
		StudentID:     record.StudentID,
		StudentName:   record.StudentName,
		SubmittedAt:   record.SubmittedAt,
	}
}
