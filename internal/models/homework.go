package models

import (
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// AllowedExtensions lists every file extension a homework may accept.
var AllowedExtensions = []string{
	".py", ".js", ".ts", ".html", ".css", ".json", ".yaml", ".yml", ".md",
	".txt", ".java", ".c", ".cpp", ".cs", ".go", ".php", ".rb", ".rs",
}

// DefaultExtension is used when a homework does not declare any extension.
const DefaultExtension = ".txt"

// HomeworkStatus classifies a homework relative to the current day.
type HomeworkStatus string

const (
	HomeworkStatusUpcoming HomeworkStatus = "upcoming"
	HomeworkStatusActive   HomeworkStatus = "active"
	HomeworkStatusOverdue  HomeworkStatus = "overdue"
)

// Homework is an assignment a teacher publishes to a group.
type Homework struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Title           string                      `gorm:"size:255;not null" json:"title"`
	Description     string                      `gorm:"type:text" json:"description"`
	Points          int                         `gorm:"not null" json:"points"`
	StartDate       time.Time                   `gorm:"type:date;not null" json:"start_date"`
	Deadline        time.Time                   `gorm:"not null;index" json:"deadline"`
	LineLimit       int                         `gorm:"not null;default:0" json:"line_limit"`
	FileExtensions  datatypes.JSONSlice[string] `json:"file_extensions"`
	TeacherID       uint                        `gorm:"not null;index" json:"teacher_id"`
	Teacher         User                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	GroupID         uint                        `gorm:"not null;index" json:"group_id"`
	Group           Group                       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	AIGradingPrompt string                      `gorm:"type:text" json:"ai_grading_prompt"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	Submissions     []Submission                `json:"-"`
}

// TableName pins the table name used by raw joins.
func (Homework) TableName() string {
	return "homeworks"
}

// ScheduleValid reports whether the homework starts no later than its deadline.
func (h Homework) ScheduleValid() bool {
	return !truncateDay(h.StartDate).After(h.Deadline)
}

// IsOpen reports whether submissions are accepted at the reference time.
func (h Homework) IsOpen(reference time.Time) bool {
	if truncateDay(reference).Before(truncateDay(h.StartDate)) {
		return false
	}
	return !reference.After(h.Deadline)
}

// Status classifies the homework by calendar day.
func (h Homework) Status(reference time.Time) HomeworkStatus {
	today := truncateDay(reference)
	switch {
	case truncateDay(h.Deadline).Before(today):
		return HomeworkStatusOverdue
	case truncateDay(h.StartDate).After(today):
		return HomeworkStatusUpcoming
	default:
		return HomeworkStatusActive
	}
}

// Extensions returns the declared extensions, falling back to DefaultExtension.
func (h Homework) Extensions() []string {
	if len(h.FileExtensions) == 0 {
		return []string{DefaultExtension}
	}
	return h.FileExtensions
}

// AcceptsFile reports whether the file name carries an allowed extension.
func (h Homework) AcceptsFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, allowed := range h.Extensions() {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// IsKnownExtension reports whether ext belongs to AllowedExtensions.
func IsKnownExtension(ext string) bool {
	normalized := strings.ToLower(strings.TrimSpace(ext))
	for _, allowed := range AllowedExtensions {
		if allowed == normalized {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
