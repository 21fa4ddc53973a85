package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/hms-api/internal/models"
)

// GradeUpdateRequest carries a teacher's direct edits. Scores are decimal strings.
type GradeUpdateRequest struct {
	FinalTaskCompleteness    *string `json:"final_task_completeness" validate:"omitempty,numeric"`
	FinalCodeQuality         *string `json:"final_code_quality" validate:"omitempty,numeric"`
	FinalCorrectness         *string `json:"final_correctness" validate:"omitempty,numeric"`
	TeacherTotal             *string `json:"teacher_total" validate:"omitempty,numeric"`
	TaskCompletenessFeedback *string `json:"task_completeness_feedback" validate:"omitempty,max=5000"`
	CodeQualityFeedback      *string `json:"code_quality_feedback" validate:"omitempty,max=5000"`
	CorrectnessFeedback      *string `json:"correctness_feedback" validate:"omitempty,max=5000"`
}

// ScoreResponse renders a score with its badge.
type ScoreResponse struct {
	Value *string `json:"value"`
	Badge string  `json:"badge"`
}

// DivergenceResponse is the teacher-minus-AI comparison.
type DivergenceResponse struct {
	GradeID uint    `json:"grade_id"`
	Delta   *string `json:"delta"`
	Band    string  `json:"band"`
}

// GradeResponse serializes a grade for review screens.
type GradeResponse struct {
	ID                       uint               `json:"id"`
	SubmissionID             uint               `json:"submission_id"`
	State                    string             `json:"state"`
	AITaskCompleteness       ScoreResponse      `json:"ai_task_completeness"`
	AICodeQuality            ScoreResponse      `json:"ai_code_quality"`
	AICorrectness            ScoreResponse      `json:"ai_correctness"`
	AITotal                  ScoreResponse      `json:"ai_total"`
	FinalTaskCompleteness    ScoreResponse      `json:"final_task_completeness"`
	FinalCodeQuality         ScoreResponse      `json:"final_code_quality"`
	FinalCorrectness         ScoreResponse      `json:"final_correctness"`
	TeacherTotal             ScoreResponse      `json:"teacher_total"`
	AIFeedback               string             `json:"ai_feedback"`
	TaskCompletenessFeedback string             `json:"task_completeness_feedback"`
	CodeQualityFeedback      string             `json:"code_quality_feedback"`
	CorrectnessFeedback      string             `json:"correctness_feedback"`
	ModifiedByTeacherID      *uint              `json:"modified_by_teacher_id"`
	Divergence               DivergenceResponse `json:"divergence"`
	UpdatedAt                time.Time          `json:"updated_at"`
}

// FormatScore renders a nullable score with two fractional digits.
func FormatScore(value decimal.NullDecimal) *string {
	if !value.Valid {
		return nil
	}
	formatted := value.Decimal.StringFixed(models.ScorePlaces)
	return &formatted
}

func newScoreResponse(value decimal.NullDecimal) ScoreResponse {
	return ScoreResponse{Value: FormatScore(value), Badge: string(models.ClassifyScore(value))}
}

// NewDivergenceResponse converts a grade's divergence into a DTO.
func NewDivergenceResponse(grade models.Grade) DivergenceResponse {
	divergence := grade.Divergence()
	return DivergenceResponse{
		GradeID: grade.ID,
		Delta:   FormatScore(divergence.Delta),
		Band:    string(divergence.Band),
	}
}

// NewGradeResponse converts a Grade model into a DTO.
func NewGradeResponse(grade models.Grade) GradeResponse {
	return GradeResponse{
		ID:                       grade.ID,
		SubmissionID:             grade.SubmissionID,
		State:                    string(grade.State()),
		AITaskCompleteness:       newScoreResponse(grade.AITaskCompleteness),
		AICodeQuality:            newScoreResponse(grade.AICodeQuality),
		AICorrectness:            newScoreResponse(grade.AICorrectness),
		AITotal:                  newScoreResponse(grade.AITotal),
		FinalTaskCompleteness:    newScoreResponse(grade.FinalTaskCompleteness),
		FinalCodeQuality:         newScoreResponse(grade.FinalCodeQuality),
		FinalCorrectness:         newScoreResponse(grade.FinalCorrectness),
		TeacherTotal:             newScoreResponse(grade.TeacherTotal),
		AIFeedback:               grade.AIFeedback,
		TaskCompletenessFeedback: grade.TaskCompletenessFeedback,
		CodeQualityFeedback:      grade.CodeQualityFeedback,
		CorrectnessFeedback:      grade.CorrectnessFeedback,
		ModifiedByTeacherID:      grade.ModifiedByTeacherID,
		Divergence:               NewDivergenceResponse(grade),
		UpdatedAt:                grade.UpdatedAt,
	}
}

// GradeRecordResponse is a grade enriched with submission context.
type GradeRecordResponse struct {
	GradeResponse
	HomeworkID    uint      `json:"homework_id"`
	HomeworkTitle string    `json:"homework_title"`
	StudentID     uint      `json:"student_id"`
	StudentName   string    `json:"student_name"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// GradeListRequest filters grade listings.
type GradeListRequest struct {
	GroupID    *uint
	HomeworkID *uint
	StudentID  *uint
}

// LeaderboardEntry is one ranked student in a group.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	StudentID   uint    `json:"student_id"`
	StudentName string  `json:"student_name"`
	Total       string  `json:"total"`
	Graded      int     `json:"graded"`
	Average     *string `json:"average"`
}

// GroupLeaderboardResponse ranks a group's students.
type GroupLeaderboardResponse struct {
	GroupID     uint               `json:"group_id"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
	Cached      bool               `json:"cached"`
}

// StudentGradesFilter narrows a student's own grades to a calendar window.
// Month is YYYY-MM, Day is YYYY-MM-DD; LastMonth selects the previous calendar month.
type StudentGradesFilter struct {
	Month     string `query:"month" validate:"omitempty,datetime=2006-01"`
	Day       string `query:"day" validate:"omitempty,datetime=2006-01-02"`
	LastMonth bool   `query:"last_month"`
}

// StudentGradesResponse lists a student's grades plus their summed effective total.
type StudentGradesResponse struct {
	Items []GradeRecordResponse `json:"items"`
	Total string                `json:"total"`
	From  *time.Time            `json:"from,omitempty"`
	To    *time.Time            `json:"to,omitempty"`
}
