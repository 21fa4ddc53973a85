package dto

import (
	"time"

	"github.com/noah-isme/hms-api/internal/models"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// HomeworkCreateRequest describes a new homework.
type HomeworkCreateRequest struct {
	Title           string   `json:"title" validate:"required,min=1,max=255"`
	Description     string   `json:"description" validate:"max=10000"`
	Points          int      `json:"points" validate:"gte=0,lte=1000"`
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	Deadline        string   `json:"deadline" validate:"required"`
	LineLimit       int      `json:"line_limit" validate:"gte=0"`
	FileExtensions  []string `json:"file_extensions" validate:"omitempty,max=18,dive,required"`
	GroupID         uint     `json:"group_id" validate:"required,gt=0"`
	AIGradingPrompt string   `json:"ai_grading_prompt" validate:"max=10000"`
}

// HomeworkUpdateRequest carries partial homework updates.
type HomeworkUpdateRequest struct {
	Title           *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Description     *string  `json:"description" validate:"omitempty,max=10000"`
	Points          *int     `json:"points" validate:"omitempty,gte=0,lte=1000"`
	StartDate       *string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Deadline        *string  `json:"deadline"`
	LineLimit       *int     `json:"line_limit" validate:"omitempty,gte=0"`
	FileExtensions  []string `json:"file_extensions" validate:"omitempty,max=18,dive,required"`
	AIGradingPrompt *string  `json:"ai_grading_prompt" validate:"omitempty,max=10000"`
}

// HomeworkListRequest defines listing filters.
type HomeworkListRequest struct {
	GroupID  *uint
	Search   string
	Page     int
	PageSize int
}

// ExtendDeadlineRequest pushes deadlines of several homework.
type ExtendDeadlineRequest struct {
	IDs  []uint `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
	Days int    `json:"days" validate:"omitempty,gte=1,lte=365"`
}

// HomeworkResponse serializes a homework.
type HomeworkResponse struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Points          int       `json:"points"`
	StartDate       string    `json:"start_date"`
	Deadline        time.Time `json:"deadline"`
	LineLimit       int       `json:"line_limit"`
	FileExtensions  []string  `json:"file_extensions"`
	TeacherID       uint      `json:"teacher_id"`
	GroupID         uint      `json:"group_id"`
	AIGradingPrompt string    `json:"ai_grading_prompt,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// HomeworkListResponse wraps a paginated homework list.
type HomeworkListResponse struct {
	Items      []HomeworkResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewHomeworkResponse converts a homework into a DTO. The grading prompt is only
// exposed when includePrompt is set.
func NewHomeworkResponse(homework models.Homework, reference time.Time, includePrompt bool) HomeworkResponse {
	response := HomeworkResponse{
		ID:             homework.ID,
		Title:          homework.Title,
		Description:    homework.Description,
		Points:         homework.Points,
		StartDate:      homework.StartDate.Format(DateLayout),
		Deadline:       homework.Deadline,
		LineLimit:      homework.LineLimit,
		FileExtensions: homework.Extensions(),
		TeacherID:      homework.TeacherID,
		GroupID:        homework.GroupID,
		Status:         string(homework.Status(reference)),
		CreatedAt:      homework.CreatedAt,
	}
	if includePrompt {
		response.AIGradingPrompt = homework.AIGradingPrompt
	}
	return response
}
