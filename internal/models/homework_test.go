package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHomeworkScheduleAndStatus(t *testing.T) {
	homework := Homework{
		StartDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Deadline:  time.Date(2025, 6, 20, 23, 59, 0, 0, time.UTC),
	}
	require.True(t, homework.ScheduleValid())

	require.Equal(t, HomeworkStatusUpcoming, homework.Status(time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC)))
	require.Equal(t, HomeworkStatusActive, homework.Status(time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)))
	require.Equal(t, HomeworkStatusActive, homework.Status(time.Date(2025, 6, 20, 23, 59, 30, 0, time.UTC)))
	require.Equal(t, HomeworkStatusOverdue, homework.Status(time.Date(2025, 6, 21, 0, 0, 1, 0, time.UTC)))

	require.False(t, homework.IsOpen(time.Date(2025, 6, 13, 23, 0, 0, 0, time.UTC)))
	require.True(t, homework.IsOpen(time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)))
	require.False(t, homework.IsOpen(time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)))

	homework.StartDate = time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	require.False(t, homework.ScheduleValid())
}

func TestHomeworkAcceptsFile(t *testing.T) {
	homework := Homework{}
	require.True(t, homework.AcceptsFile("notes.TXT"))
	require.False(t, homework.AcceptsFile("main.go"))
	require.False(t, homework.AcceptsFile("Makefile"))

	homework.FileExtensions = []string{".go", ".md"}
	require.True(t, homework.AcceptsFile("main.go"))
	require.False(t, homework.AcceptsFile("notes.txt"))

	require.True(t, IsKnownExtension(".RS"))
	require.False(t, IsKnownExtension(".exe"))
}
