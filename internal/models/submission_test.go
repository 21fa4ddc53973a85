package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountLines(t *testing.T) {
	require.Equal(t, 3, CountLines("a\nb\n\nc"))
	require.Equal(t, 3, CountLines("a\nb\n\nc\n"))
	require.Equal(t, 0, CountLines(""))
	require.Equal(t, 0, CountLines("  \n\t\n"))
	require.Equal(t, 2, CountLines("\r\nfirst\r\n   \r\nsecond\r\n"))
	require.Equal(t, 1, CountLines("only"))
}

func TestCountLinesUnicodeBoundaries(t *testing.T) {
	for _, sep := range []string{"\v", "\f", "\x1c", "\x1d", "\x1e", "\u0085", "\u2028", "\u2029"} {
		require.Equal(t, 2, CountLines("a"+sep+"b"), "separator %q", sep)
	}
	require.Equal(t, 2, CountLines("a\u2028\u2028b\r"))
	require.Equal(t, 0, CountLines("\x1f\n\u2029 \f"))
}

func TestNewSubmissionFileDerivesFields(t *testing.T) {
	file := NewSubmissionFile("main.py", "print(1)\n\nprint(2)\n")
	require.Equal(t, 2, file.LineCount)
	require.Equal(t, len("print(1)\n\nprint(2)\n"), file.SizeBytes)
}

func TestSubmissionMarkFinal(t *testing.T) {
	ai := 80
	submission := Submission{AIGrade: &ai}
	require.Equal(t, "ai_graded", submission.GradingStatus())

	require.True(t, submission.MarkFinal())
	require.NotNil(t, submission.FinalGrade)
	require.Equal(t, 80, *submission.FinalGrade)
	require.Equal(t, "graded", submission.GradingStatus())

	require.False(t, submission.MarkFinal())

	empty := Submission{}
	require.False(t, empty.MarkFinal())
	require.Nil(t, empty.FinalGrade)
}
