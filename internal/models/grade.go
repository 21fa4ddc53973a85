package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScorePlaces is the number of fractional digits every score is stored with.
const ScorePlaces = 2

// GradeState describes how far a grade has progressed through review.
type GradeState string

const (
	GradeStateUnscored          GradeState = "unscored"
	GradeStateAIScored          GradeState = "ai_scored"
	GradeStateTeacherOverridden GradeState = "teacher_overridden"
	GradeStateFinalized         GradeState = "finalized"
)

// DivergenceBand classifies the gap between the teacher and AI totals.
type DivergenceBand string

const (
	DivergenceAligned      DivergenceBand = "aligned"
	DivergenceCaution      DivergenceBand = "caution"
	DivergenceConflict     DivergenceBand = "conflict"
	DivergenceIncomparable DivergenceBand = "incomparable"
)

var (
	alignedLimit = decimal.NewFromInt(5)
	cautionLimit = decimal.NewFromInt(15)
)

// Divergence is the signed teacher-minus-AI delta and its band.
// Delta is invalid when the band is DivergenceIncomparable.
type Divergence struct {
	Delta decimal.NullDecimal
	Band  DivergenceBand
}

// ClassifyDelta maps a signed delta onto its band. Band edges are inclusive.
func ClassifyDelta(delta decimal.Decimal) DivergenceBand {
	abs := delta.Abs()
	switch {
	case abs.LessThanOrEqual(alignedLimit):
		return DivergenceAligned
	case abs.LessThanOrEqual(cautionLimit):
		return DivergenceCaution
	default:
		return DivergenceConflict
	}
}

// ScoreBadge is the colour class used when listing a score.
type ScoreBadge string

const (
	ScoreBadgeGood ScoreBadge = "good"
	ScoreBadgeFair ScoreBadge = "fair"
	ScoreBadgePoor ScoreBadge = "poor"
	ScoreBadgeNone ScoreBadge = "none"
)

var (
	goodScore = decimal.NewFromInt(70)
	fairScore = decimal.NewFromInt(50)
)

// ClassifyScore buckets a score: >=70 good, >=50 fair, otherwise poor.
func ClassifyScore(score decimal.NullDecimal) ScoreBadge {
	switch {
	case !score.Valid:
		return ScoreBadgeNone
	case score.Decimal.GreaterThanOrEqual(goodScore):
		return ScoreBadgeGood
	case score.Decimal.GreaterThanOrEqual(fairScore):
		return ScoreBadgeFair
	default:
		return ScoreBadgePoor
	}
}

// Grade holds the AI evaluation of a submission next to the teacher's review.
// AI columns are written by the external grading process and never modified here.
type Grade struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	SubmissionID uint `gorm:"not null;uniqueIndex" json:"submission_id"`

	AITaskCompleteness decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"ai_task_completeness"`
	AICodeQuality      decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"ai_code_quality"`
	AICorrectness      decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"ai_correctness"`
	AITotal            decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"ai_total"`

	FinalTaskCompleteness decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"final_task_completeness"`
	FinalCodeQuality      decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"final_code_quality"`
	FinalCorrectness      decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"final_correctness"`
	TeacherTotal          decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"teacher_total"`

	AIFeedback               string `gorm:"type:text" json:"ai_feedback"`
	TaskCompletenessFeedback string `gorm:"type:text" json:"task_completeness_feedback"`
	CodeQualityFeedback      string `gorm:"type:text" json:"code_quality_feedback"`
	CorrectnessFeedback      string `gorm:"type:text" json:"correctness_feedback"`

	ModifiedByTeacherID *uint     `json:"modified_by_teacher_id"`
	ModifiedByTeacher   *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ApproveAI adopts the AI scores as the teacher's scores. It only applies when
// the AI total is present and no teacher total exists yet, and reports whether
// the grade changed.
func (g *Grade) ApproveAI(teacherID uint) bool {
	if !g.AITotal.Valid || g.TeacherTotal.Valid {
		return false
	}

	g.FinalTaskCompleteness = g.AITaskCompleteness
	g.FinalCodeQuality = g.AICodeQuality
	g.FinalCorrectness = g.AICorrectness
	g.TeacherTotal = g.AITotal
	modifier := teacherID
	g.ModifiedByTeacherID = &modifier
	return true
}

// ResetTeacher clears every teacher-side score and the modifier.
func (g *Grade) ResetTeacher() {
	g.FinalTaskCompleteness = decimal.NullDecimal{}
	g.FinalCodeQuality = decimal.NullDecimal{}
	g.FinalCorrectness = decimal.NullDecimal{}
	g.TeacherTotal = decimal.NullDecimal{}
	g.ModifiedByTeacherID = nil
}

// HasTeacherScores reports whether any teacher-side field is set.
func (g Grade) HasTeacherScores() bool {
	return g.FinalTaskCompleteness.Valid || g.FinalCodeQuality.Valid ||
		g.FinalCorrectness.Valid || g.TeacherTotal.Valid || g.ModifiedByTeacherID != nil
}

// Divergence compares the teacher total with the AI total.
func (g Grade) Divergence() Divergence {
	if !g.AITotal.Valid || !g.TeacherTotal.Valid {
		return Divergence{Band: DivergenceIncomparable}
	}
	delta := g.TeacherTotal.Decimal.Sub(g.AITotal.Decimal)
	return Divergence{
		Delta: decimal.NullDecimal{Decimal: delta, Valid: true},
		Band:  ClassifyDelta(delta),
	}
}

// State derives the review state from the populated columns.
func (g Grade) State() GradeState {
	switch {
	case g.TeacherTotal.Valid && g.ModifiedByTeacherID != nil:
		return GradeStateTeacherOverridden
	case g.TeacherTotal.Valid:
		return GradeStateFinalized
	case g.AITotal.Valid:
		return GradeStateAIScored
	default:
		return GradeStateUnscored
	}
}

// EffectiveTotal is the teacher total when present, otherwise the AI total.
func (g Grade) EffectiveTotal() decimal.NullDecimal {
	if g.TeacherTotal.Valid {
		return g.TeacherTotal
	}
	return g.AITotal
}

// RoundScore normalises a score to ScorePlaces fractional digits.
func RoundScore(value decimal.Decimal) decimal.Decimal {
	return value.Round(ScorePlaces)
}
