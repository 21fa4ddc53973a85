package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func score(value string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(value), Valid: true}
}

func aiScoredGrade() Grade {
	return Grade{
		ID:                 1,
		SubmissionID:       7,
		AITaskCompleteness: score("25.00"),
		AICodeQuality:      score("25.00"),
		AICorrectness:      score("25.00"),
		AITotal:            score("75.00"),
	}
}

func TestGradeApproveAICopiesScores(t *testing.T) {
	grade := aiScoredGrade()
	require.Equal(t, GradeStateAIScored, grade.State())

	changed := grade.ApproveAI(42)
	require.True(t, changed)
	require.True(t, grade.TeacherTotal.Decimal.Equal(decimal.RequireFromString("75.00")))
	require.True(t, grade.FinalTaskCompleteness.Decimal.Equal(grade.AITaskCompleteness.Decimal))
	require.True(t, grade.FinalCodeQuality.Decimal.Equal(grade.AICodeQuality.Decimal))
	require.True(t, grade.FinalCorrectness.Decimal.Equal(grade.AICorrectness.Decimal))
	require.NotNil(t, grade.ModifiedByTeacherID)
	require.Equal(t, uint(42), *grade.ModifiedByTeacherID)
	require.Equal(t, GradeStateTeacherOverridden, grade.State())

	require.False(t, grade.ApproveAI(43), "second approval must be a no-op")
	require.Equal(t, uint(42), *grade.ModifiedByTeacherID)
}

func TestGradeApproveAIRequiresAITotal(t *testing.T) {
	grade := Grade{ID: 2}
	require.False(t, grade.ApproveAI(1))
	require.False(t, grade.HasTeacherScores())
	require.Equal(t, GradeStateUnscored, grade.State())
}

func TestGradeApproveAISkipsOverriddenGrade(t *testing.T) {
	grade := aiScoredGrade()
	grade.TeacherTotal = score("90.00")

	require.False(t, grade.ApproveAI(5))
	require.True(t, grade.TeacherTotal.Decimal.Equal(decimal.NewFromInt(90)))
	require.Nil(t, grade.ModifiedByTeacherID)
	require.Equal(t, GradeStateFinalized, grade.State())
}

func TestGradeResetTeacherIsIdempotent(t *testing.T) {
	grade := aiScoredGrade()
	require.True(t, grade.ApproveAI(9))

	grade.ResetTeacher()
	first := grade
	grade.ResetTeacher()

	require.Equal(t, first, grade)
	require.False(t, grade.HasTeacherScores())
	require.True(t, grade.AITotal.Valid, "AI scores are untouched")
	require.Equal(t, GradeStateAIScored, grade.State())
}

func TestGradeDivergenceBands(t *testing.T) {
	cases := []struct {
		name    string
		teacher string
		band    DivergenceBand
	}{
		{name: "equal", teacher: "75.00", band: DivergenceAligned},
		{name: "exactly five", teacher: "80.00", band: DivergenceAligned},
		{name: "just above five", teacher: "80.01", band: DivergenceCaution},
		{name: "exactly fifteen", teacher: "90.00", band: DivergenceCaution},
		{name: "just above fifteen", teacher: "90.01", band: DivergenceConflict},
		{name: "negative fifteen", teacher: "60.00", band: DivergenceCaution},
		{name: "negative conflict", teacher: "59.99", band: DivergenceConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grade := aiScoredGrade()
			grade.TeacherTotal = score(tc.teacher)

			divergence := grade.Divergence()
			require.Equal(t, tc.band, divergence.Band)
			require.True(t, divergence.Delta.Valid)
			expected := decimal.RequireFromString(tc.teacher).Sub(decimal.RequireFromString("75.00"))
			require.True(t, expected.Equal(divergence.Delta.Decimal))
		})
	}
}

func TestGradeDivergenceIncomparable(t *testing.T) {
	grade := aiScoredGrade()
	divergence := grade.Divergence()
	require.Equal(t, DivergenceIncomparable, divergence.Band)
	require.False(t, divergence.Delta.Valid)

	teacherOnly := Grade{TeacherTotal: score("50.00")}
	require.Equal(t, DivergenceIncomparable, teacherOnly.Divergence().Band)
}

func TestClassifyScore(t *testing.T) {
	require.Equal(t, ScoreBadgeNone, ClassifyScore(decimal.NullDecimal{}))
	require.Equal(t, ScoreBadgeGood, ClassifyScore(score("70")))
	require.Equal(t, ScoreBadgeFair, ClassifyScore(score("69.99")))
	require.Equal(t, ScoreBadgeFair, ClassifyScore(score("50")))
	require.Equal(t, ScoreBadgePoor, ClassifyScore(score("49.99")))
}

func TestGradeEffectiveTotal(t *testing.T) {
	grade := aiScoredGrade()
	require.True(t, grade.EffectiveTotal().Decimal.Equal(decimal.NewFromInt(75)))

	grade.TeacherTotal = score("81.50")
	require.True(t, grade.EffectiveTotal().Decimal.Equal(decimal.RequireFromString("81.5")))
}
