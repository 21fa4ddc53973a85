package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type fixture struct {
	teacher  models.User
	student  models.User
	group    models.Group
	homework models.Homework
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	teacher := models.User{FullName: "Teacher One", Phone: "+998900000001", Role: models.RoleTeacher, IsActive: true}
	require.NoError(t, db.Create(&teacher).Error)

	group := models.Group{Name: "G-1", TeacherID: &teacher.ID}
	require.NoError(t, db.Create(&group).Error)

	student := models.User{FullName: "Student One", Phone: "+998900000002", Role: models.RoleStudent, GroupID: &group.ID, IsActive: true}
	require.NoError(t, db.Create(&student).Error)

	homework := models.Homework{
		Title:     "Loops",
		Points:    100,
		StartDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Deadline:  time.Date(2025, 6, 20, 23, 59, 0, 0, time.UTC),
		TeacherID: teacher.ID,
		GroupID:   group.ID,
	}
	require.NoError(t, NewHomeworkRepository(db).Create(context.Background(), &homework))

	return fixture{teacher: teacher, student: student, group: group, homework: homework}
}

func decimalScore(value string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(value), Valid: true}
}

func TestSubmissionRepositoryCreateWithFilesCreatesGrade(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{
		HomeworkID:  fx.homework.ID,
		StudentID:   fx.student.ID,
		SubmittedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		Files: []models.SubmissionFile{
			models.NewSubmissionFile("main.txt", "a\nb\n\nc"),
			models.NewSubmissionFile("notes.txt", ""),
		},
	}
	require.NoError(t, repo.CreateWithFiles(ctx, &submission))
	require.NotZero(t, submission.ID)
	require.NotNil(t, submission.Grade)

	loaded, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Files, 2)
	require.Equal(t, "main.txt", loaded.Files[0].FileName)
	require.Equal(t, 3, loaded.Files[0].LineCount)
	require.Equal(t, 0, loaded.Files[1].LineCount)
	require.NotNil(t, loaded.Grade)
	require.Equal(t, models.GradeStateUnscored, loaded.Grade.State())
	require.Equal(t, "Loops", loaded.Homework.Title)

	groupID := fx.group.ID
	listed, err := repo.List(ctx, SubmissionFilter{GroupID: &groupID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestSubmissionRepositoryMutateFinalCountsChangedRows(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	ai := 70
	final := 90
	withAI := models.Submission{HomeworkID: fx.homework.ID, StudentID: fx.student.ID, SubmittedAt: time.Now(), AIGrade: &ai}
	alreadyFinal := models.Submission{HomeworkID: fx.homework.ID, StudentID: fx.student.ID, SubmittedAt: time.Now(), AIGrade: &ai, FinalGrade: &final}
	noAI := models.Submission{HomeworkID: fx.homework.ID, StudentID: fx.student.ID, SubmittedAt: time.Now()}
	for _, submission := range []*models.Submission{&withAI, &alreadyFinal, &noAI} {
		require.NoError(t, repo.CreateWithFiles(ctx, submission))
	}

	ids := []uint{withAI.ID, alreadyFinal.ID, noAI.ID, 9999}
	changed, err := repo.MutateFinal(ctx, ids, func(s *models.Submission) bool { return s.MarkFinal() })
	require.NoError(t, err)
	require.Len(t, changed, 1)
	require.Equal(t, withAI.ID, changed[0].ID)

	reloaded, err := repo.GetByID(ctx, withAI.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.FinalGrade)
	require.Equal(t, 70, *reloaded.FinalGrade)

	changed, err = repo.MutateFinal(ctx, ids, func(s *models.Submission) bool { return s.MarkFinal() })
	require.NoError(t, err)
	require.Empty(t, changed)
}

func TestGradeRepositoryMutateAndListRecords(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db)
	submissions := NewSubmissionRepository(db)
	grades := NewGradeRepository(db)
	ctx := context.Background()

	submission := models.Submission{HomeworkID: fx.homework.ID, StudentID: fx.student.ID, SubmittedAt: time.Now()}
	require.NoError(t, submissions.CreateWithFiles(ctx, &submission))

	grade := *submission.Grade
	grade.AITaskCompleteness = decimalScore("25.00")
	grade.AICodeQuality = decimalScore("25.00")
	grade.AICorrectness = decimalScore("25.00")
	grade.AITotal = decimalScore("75.00")
	require.NoError(t, grades.Update(ctx, &grade))

	changed, err := grades.Mutate(ctx, []uint{grade.ID}, func(g *models.Grade) bool { return g.ApproveAI(fx.teacher.ID) })
	require.NoError(t, err)
	require.Len(t, changed, 1)

	stored, err := grades.GetByID(ctx, grade.ID)
	require.NoError(t, err)
	require.True(t, stored.TeacherTotal.Valid)
	require.True(t, stored.TeacherTotal.Decimal.Equal(decimal.NewFromInt(75)))
	require.NotNil(t, stored.ModifiedByTeacherID)
	require.Equal(t, fx.teacher.ID, *stored.ModifiedByTeacherID)

	changed, err = grades.Mutate(ctx, []uint{grade.ID}, func(g *models.Grade) bool { return g.ApproveAI(fx.teacher.ID) })
	require.NoError(t, err)
	require.Empty(t, changed)

	groupID := fx.group.ID
	records, err := grades.ListRecords(ctx, GradeRecordFilter{GroupID: &groupID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Student One", records[0].StudentName)
	require.Equal(t, "Loops", records[0].Homework)

	otherGroup := fx.group.ID + 100
	records, err = grades.ListRecords(ctx, GradeRecordFilter{GroupID: &otherGroup})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestSessionRepositoryWithUserLock(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	err := repo.WithUserLock(ctx, fx.student.ID, func(tx SessionTx) error {
		_, found, err := tx.FindByDevice("laptop", nil)
		require.NoError(t, err)
		require.False(t, found)

		session := models.Session{UserID: fx.student.ID, DeviceName: "laptop", IPAddress: "10.0.0.1", LastSeenAt: now}
		if err := tx.Create(&session); err != nil {
			return err
		}
		return tx.TouchUserLogin(fx.student.ID, now)
	})
	require.NoError(t, err)

	sessions, err := repo.ListByUser(ctx, fx.student.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	err = repo.WithUserLock(ctx, fx.teacher.ID, func(tx SessionTx) error {
		session, found, err := tx.FindByDevice("laptop", nil)
		require.NoError(t, err)
		require.True(t, found, "global lookup sees other users' devices")
		require.Equal(t, fx.student.ID, session.UserID)

		teacherID := fx.teacher.ID
		_, found, err = tx.FindByDevice("laptop", &teacherID)
		require.NoError(t, err)
		require.False(t, found)
		return nil
	})
	require.NoError(t, err)

	var user models.User
	require.NoError(t, db.First(&user, fx.student.ID).Error)
	require.NotNil(t, user.LastLoginAt)

	require.NoError(t, repo.Delete(ctx, sessions[0].ID))
	require.ErrorIs(t, repo.Delete(ctx, sessions[0].ID), gorm.ErrRecordNotFound)

	err = repo.WithUserLock(ctx, 9999, func(tx SessionTx) error { return nil })
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHomeworkRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	fx := seedFixture(t, db)
	repo := NewHomeworkRepository(db)
	ctx := context.Background()

	extra := fx.homework
	extra.ID = 0
	extra.Title = "Recursion"
	extra.FileExtensions = []string{".py"}
	require.NoError(t, repo.CreateBatch(ctx, []models.Homework{extra}))

	teacherID := fx.teacher.ID
	items, total, err := repo.List(ctx, HomeworkFilter{TeacherID: &teacherID, Search: "recur"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	require.Equal(t, []string{".py"}, []string(items[0].FileExtensions))

	items, total, err = repo.List(ctx, HomeworkFilter{PageSize: 1, Page: 2})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 1)

	require.NoError(t, repo.Delete(ctx, fx.homework.ID))
	require.ErrorIs(t, repo.Delete(ctx, fx.homework.ID), gorm.ErrRecordNotFound)
}
