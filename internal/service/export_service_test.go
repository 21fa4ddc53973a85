package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

func TestExportUsersCSV(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db)
	svc := NewExportService(repository.NewUserRepository(db), repository.NewGradeRepository(db), testLogger())

	file, err := svc.Users(context.Background(), repository.UserFilter{Role: models.RoleStudent})
	require.NoError(t, err)
	require.Equal(t, "text/csv", file.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, userExportHeaders, rows[0])
	require.Equal(t, fx.student.Phone, rows[1][0])
	require.Equal(t, "G-1", rows[1][3])
}

func TestExportGroupGrades(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db)
	seedGrade(t, db, fx, models.Grade{AITotal: score("60"), TeacherTotal: score("80"), ModifiedByTeacherID: &fx.teacher.ID})
	svc := NewExportService(repository.NewUserRepository(db), repository.NewGradeRepository(db), testLogger())
	ctx := context.Background()

	csvFile, err := svc.GroupGrades(ctx, fx.actor(fx.teacher), fx.group.ID, "")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(csvFile.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"60.00", "80.00", "20.00", "conflict", "teacher_overridden"}, rows[1][5:])

	xlsxFile, err := svc.GroupGrades(ctx, fx.actor(fx.admin), fx.group.ID, "XLSX")
	require.NoError(t, err)
	workbook, err := excelize.OpenReader(bytes.NewReader(xlsxFile.Data))
	require.NoError(t, err)
	defer workbook.Close()
	sheetRows, err := workbook.GetRows("Grades")
	require.NoError(t, err)
	require.Len(t, sheetRows, 2)
	require.Equal(t, "Loops", sheetRows[1][2])

	_, err = svc.GroupGrades(ctx, fx.actor(fx.teacher), fx.group.ID, "pdf")
	require.ErrorIs(t, err, ErrUnsupportedExportFormat)

	_, err = svc.GroupGrades(ctx, fx.actor(fx.other), fx.group.ID, "csv")
	require.ErrorIs(t, err, ErrLeaderboardForbidden)
}
