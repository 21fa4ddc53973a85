package models

import (
	"strings"
	"time"
	"unicode"
)

// Submission is a student's answer to a homework, made of one or more files.
type Submission struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	HomeworkID  uint             `gorm:"not null;index" json:"homework_id"`
	StudentID   uint             `gorm:"not null;index" json:"student_id"`
	SubmittedAt time.Time        `gorm:"not null" json:"submitted_at"`
	AIGrade     *int             `json:"ai_grade"`
	FinalGrade  *int             `json:"final_grade"`
	AIFeedback  string           `gorm:"type:text" json:"ai_feedback"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Homework    Homework         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"homework"`
	Student     User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Files       []SubmissionFile `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"files"`
	Grade       *Grade           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"grade"`
}

// MarkFinal promotes the AI grade to the final grade when no final grade exists yet.
// It reports whether the submission changed.
func (s *Submission) MarkFinal() bool {
	if s.AIGrade == nil || s.FinalGrade != nil {
		return false
	}
	final := *s.AIGrade
	s.FinalGrade = &final
	return true
}

// GradingStatus summarises the submission-level grades.
func (s Submission) GradingStatus() string {
	switch {
	case s.FinalGrade != nil:
		return "graded"
	case s.AIGrade != nil:
		return "ai_graded"
	default:
		return "ungraded"
	}
}

// SubmissionFile is one text file attached to a submission.
type SubmissionFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	Content      string    `gorm:"type:text" json:"-"`
	LineCount    int       `gorm:"not null;default:0" json:"line_count"`
	SizeBytes    int       `gorm:"not null;default:0" json:"size_bytes"`
	ArchiveURL   string    `gorm:"size:512" json:"archive_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSubmissionFile builds a file record with its derived fields populated.
func NewSubmissionFile(name, content string) SubmissionFile {
	return SubmissionFile{
		FileName:  name,
		Content:   content,
		LineCount: CountLines(content),
		SizeBytes: len(content),
	}
}

// CountLines counts the non-blank lines of content. Line boundaries are the
// Unicode set: LF, CR, CRLF, VT, FF, the file/group/record separators, NEL and
// the line and paragraph separators.
func CountLines(content string) int {
	count := 0
	for _, line := range strings.FieldsFunc(content, isLineBreak) {
		if strings.TrimFunc(line, isBlank) != "" {
			count++
		}
	}
	return count
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// isBlank also treats the unit separator as whitespace.
func isBlank(r rune) bool {
	return unicode.IsSpace(r) || r == '\x1f'
}
