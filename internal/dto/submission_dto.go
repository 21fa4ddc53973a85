package dto

import (
	"time"

	"github.com/noah-isme/hms-api/internal/models"
)

// SubmissionFileUpload is one decoded file handed to the submission service.
type SubmissionFileUpload struct {
	Name    string
	Content []byte
}

// SubmissionCreateRequest describes a student's submission.
type SubmissionCreateRequest struct {
	HomeworkID uint                   `validate:"required,gt=0"`
	Files      []SubmissionFileUpload `validate:"required,min=1,max=20"`
}

// SubmissionFileResponse serializes a submitted file without its content.
type SubmissionFileResponse struct {
	ID         uint   `json:"id"`
	FileName   string `json:"file_name"`
	LineCount  int    `json:"line_count"`
	SizeBytes  int    `json:"size_bytes"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID            uint                     `json:"id"`
	HomeworkID    uint                     `json:"homework_id"`
	HomeworkTitle string                   `json:"homework_title"`
	StudentID     uint                     `json:"student_id"`
	StudentName   string                   `json:"student_name"`
	SubmittedAt   time.Time                `json:"submitted_at"`
	AIGrade       *int                     `json:"ai_grade"`
	FinalGrade    *int                     `json:"final_grade"`
	AIFeedback    string                   `json:"ai_feedback"`
	GradingStatus string                   `json:"grading_status"`
	Files         []SubmissionFileResponse `json:"files"`
	Grade         *GradeResponse           `json:"grade,omitempty"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:            model.ID,
		HomeworkID:    model.HomeworkID,
		HomeworkTitle: model.Homework.Title,
		StudentID:     model.StudentID,
		StudentName:   model.Student.FullName,
		SubmittedAt:   model.SubmittedAt,
		AIGrade:       model.AIGrade,
		FinalGrade:    model.FinalGrade,
		AIFeedback:    model.AIFeedback,
		GradingStatus: model.GradingStatus(),
		Files:         make([]SubmissionFileResponse, 0, len(model.Files)),
	}

	for _, file := range model.Files {
		response.Files = append(response.Files, SubmissionFileResponse{
			ID:         file.ID,
			FileName:   file.FileName,
			LineCount:  file.LineCount,
			SizeBytes:  file.SizeBytes,
			ArchiveURL: file.ArchiveURL,
		})
	}

	if model.Grade != nil {
		grade := NewGradeResponse(*model.Grade)
		response.Grade = &grade
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}

// SubmissionListRequest narrows submission listings.
type SubmissionListRequest struct {
	HomeworkID *uint
	GroupID    *uint
	StudentID  *uint
}
