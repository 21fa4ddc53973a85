package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/events"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

func newGradingService(t *testing.T) (GradingService, *gorm.DB, fixture, *memoryActivityRepo, *recordingPublisher) {
	t.Helper()

	db := setupTestDB(t)
	fx := seedFixture(t, db)
	activity := &memoryActivityRepo{}
	publisher := &recordingPublisher{}

	svc := NewGradingService(
		repository.NewGradeRepository(db),
		repository.NewSubmissionRepository(db),
		testValidator(),
		NewActivityService(activity, testLogger()),
		publisher,
		testLogger(),
	)
	return svc, db, fx, activity, publisher
}

func TestGradingApproveAICountsOnlyChangedGrades(t *testing.T) {
	svc, db, fx, activity, publisher := newGradingService(t)
	ctx := context.Background()

	pending := seedGrade(t, db, fx, models.Grade{
		AITaskCompleteness: score("30"),
		AICodeQuality:      score("25"),
		AICorrectness:      score("20"),
		AITotal:            score("75"),
	})
	reviewed := seedGrade(t, db, fx, models.Grade{AITotal: score("60"), TeacherTotal: score("80"), ModifiedByTeacherID: &fx.teacher.ID})
	unscored := seedGrade(t, db, fx, models.Grade{})

	payload := dto.BatchRequest{IDs: []uint{pending.ID, reviewed.ID, unscored.ID, 9999}}
	result, err := svc.ApproveAI(ctx, fx.actor(fx.teacher), payload)
	require.NoError(t, err)
	require.Equal(t, 4, result.Requested)
	require.Equal(t, 1, result.Affected)
	require.Equal(t, []uint{pending.ID}, result.IDs)

	var stored models.Grade
	require.NoError(t, db.First(&stored, pending.ID).Error)
	require.Equal(t, "75.00", stored.TeacherTotal.Decimal.StringFixed(2))
	require.Equal(t, "30.00", stored.FinalTaskCompleteness.Decimal.StringFixed(2))
	require.Equal(t, fx.teacher.ID, *stored.ModifiedByTeacherID)
	require.Equal(t, models.GradeStateTeacherOverridden, stored.State())

	second, err := svc.ApproveAI(ctx, fx.actor(fx.teacher), payload)
	require.NoError(t, err)
	require.Equal(t, 0, second.Affected)

	require.Equal(t, 1, publisher.count(events.GradeApproved))
	require.Equal(t, []string{"grade.approve_ai", "grade.approve_ai"}, activity.actions())
}

func TestGradingApprovedAITotalIsAligned(t *testing.T) {
	svc, db, fx, _, _ := newGradingService(t)
	ctx := context.Background()

	grade := seedGrade(t, db, fx, models.Grade{AITotal: score("75")})

	_, err := svc.ApproveAI(ctx, fx.actor(fx.admin), dto.BatchRequest{IDs: []uint{grade.ID}})
	require.NoError(t, err)

	divergence, err := svc.Divergence(ctx, fx.actor(fx.teacher), grade.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.DivergenceAligned), divergence.Band)
	require.NotNil(t, divergence.Delta)
	require.Equal(t, "0.00", *divergence.Delta)
}

func TestGradingResetTeacherCountsMatchedGrades(t *testing.T) {
	svc, db, fx, _, publisher := newGradingService(t)
	ctx := context.Background()

	reviewed := seedGrade(t, db, fx, models.Grade{AITotal: score("60"), TeacherTotal: score("80"), FinalCodeQuality: score("20"), ModifiedByTeacherID: &fx.teacher.ID})
	untouched := seedGrade(t, db, fx, models.Grade{AITotal: score("50")})

	result, err := svc.ResetTeacher(ctx, fx.actor(fx.teacher), dto.BatchRequest{IDs: []uint{reviewed.ID, untouched.ID, 9999}})
	require.NoError(t, err)
	require.Equal(t, 3, result.Requested)
	require.Equal(t, 2, result.Affected)
	require.Equal(t, 2, publisher.count(events.GradeReset))

	var stored models.Grade
	require.NoError(t, db.First(&stored, reviewed.ID).Error)
	require.False(t, stored.HasTeacherScores())
	require.Equal(t, models.GradeStateAIScored, stored.State())
	require.Equal(t, "60.00", stored.AITotal.Decimal.StringFixed(2))
}

func TestGradingBatchScopedToTeacherHomework(t *testing.T) {
	svc, db, fx, _, _ := newGradingService(t)
	ctx := context.Background()

	grade := seedGrade(t, db, fx, models.Grade{AITotal: score("75")})

	result, err := svc.ApproveAI(ctx, fx.actor(fx.other), dto.BatchRequest{IDs: []uint{grade.ID}})
	require.NoError(t, err)
	require.Equal(t, 0, result.Affected)

	_, err = svc.Get(ctx, fx.actor(fx.other), grade.ID)
	require.ErrorIs(t, err, ErrGradeNotFound)
}

func TestGradingMarkFinalPromotesAIGrade(t *testing.T) {
	svc, db, fx, _, publisher := newGradingService(t)
	ctx := context.Background()
	submissions := repository.NewSubmissionRepository(db)

	ai := 70
	final := 90
	withAI := models.Submission{HomeworkID: fx.homework.ID, StudentID: fx.student.ID, AIGrade: &ai}
	alreadyFinal := models.Submission{HomeworkID: fx.homework.ID, StudentID: fx.student.ID, AIGrade: &ai, FinalGrade: &final}
	for _, submission := range []*models.Submission{&withAI, &alreadyFinal} {
		require.NoError(t, submissions.CreateWithFiles(ctx, submission))
	}

	result, err := svc.MarkFinal(ctx, fx.actor(fx.teacher), dto.BatchRequest{IDs: []uint{withAI.ID, alreadyFinal.ID}})
	require.NoError(t, err)
	require.Equal(t, 1, result.Affected)
	require.Equal(t, 1, publisher.count(events.GradeFinalized))

	stored, err := submissions.GetByID(ctx, withAI.ID)
	require.NoError(t, err)
	require.Equal(t, 70, *stored.FinalGrade)

	untouched, err := submissions.GetByID(ctx, alreadyFinal.ID)
	require.NoError(t, err)
	require.Equal(t, 90, *untouched.FinalGrade)
}

func TestGradingUpdateValidatesAndSanitizes(t *testing.T) {
	svc, db, fx, _, publisher := newGradingService(t)
	ctx := context.Background()

	grade := seedGrade(t, db, fx, models.Grade{AITotal: score("60")})

	_, err := svc.Update(ctx, fx.actor(fx.teacher), grade.ID, dto.GradeUpdateRequest{TeacherTotal: ptrString("100.5")})
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	response, err := svc.Update(ctx, fx.actor(fx.teacher), grade.ID, dto.GradeUpdateRequest{
		TeacherTotal:        ptrString("80.456"),
		CodeQualityFeedback: ptrString("<script>alert(1)</script>Clean code"),
	})
	require.NoError(t, err)
	require.Equal(t, "80.46", *response.TeacherTotal.Value)
	require.Equal(t, string(models.ScoreBadgeGood), response.TeacherTotal.Badge)
	require.Equal(t, "Clean code", response.CodeQualityFeedback)
	require.Equal(t, string(models.GradeStateTeacherOverridden), response.State)
	require.Equal(t, string(models.DivergenceConflict), response.Divergence.Band)
	require.Equal(t, "20.46", *response.Divergence.Delta)
	require.Equal(t, 1, publisher.count(events.GradeUpdated))

	var stored models.Grade
	require.NoError(t, db.First(&stored, grade.ID).Error)
	require.Equal(t, "60.00", stored.AITotal.Decimal.StringFixed(2))
}

func TestGradingDivergenceIncomparable(t *testing.T) {
	svc, db, fx, _, _ := newGradingService(t)

	grade := seedGrade(t, db, fx, models.Grade{AITotal: score("60")})

	response, err := svc.Divergence(context.Background(), fx.actor(fx.teacher), grade.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.DivergenceIncomparable), response.Band)
	require.Nil(t, response.Delta)
}

func TestGradingListScopesStudents(t *testing.T) {
	svc, db, fx, _, _ := newGradingService(t)

	seedGrade(t, db, fx, models.Grade{AITotal: score("60")})

	records, err := svc.List(context.Background(), fx.actor(fx.student), dto.GradeListRequest{StudentID: ptrUint(9999)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, fx.student.ID, records[0].StudentID)

	others, err := svc.List(context.Background(), fx.actor(fx.other), dto.GradeListRequest{})
	require.NoError(t, err)
	require.Empty(t, others)
}

func TestGradingStudentReadsOnlyOwnGrade(t *testing.T) {
	svc, db, fx, _, _ := newGradingService(t)
	ctx := context.Background()

	own := seedGrade(t, db, fx, models.Grade{AITotal: score("70"), TeacherTotal: score("72"), ModifiedByTeacherID: &fx.teacher.ID})

	classmate := models.User{FullName: "Student Two", Phone: "+998900000009", Role: models.RoleStudent, GroupID: &fx.group.ID, IsActive: true}
	require.NoError(t, db.Create(&classmate).Error)
	foreign := seedGrade(t, db, fixture{student: classmate, homework: fx.homework}, models.Grade{AITotal: score("40")})

	grade, err := svc.Get(ctx, fx.actor(fx.student), own.ID)
	require.NoError(t, err)
	require.Equal(t, own.ID, grade.ID)

	divergence, err := svc.Divergence(ctx, fx.actor(fx.student), own.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.DivergenceAligned), divergence.Band)

	_, err = svc.Get(ctx, fx.actor(fx.student), foreign.ID)
	require.ErrorIs(t, err, ErrGradeNotFound)

	_, err = svc.Divergence(ctx, fx.actor(fx.student), foreign.ID)
	require.ErrorIs(t, err, ErrGradeNotFound)

	_, err = svc.Get(ctx, fx.actor(classmate), foreign.ID)
	require.NoError(t, err)
}

func TestParseScore(t *testing.T) {
	value, err := ParseScore(" 99.999 ")
	require.NoError(t, err)
	require.Equal(t, "100.00", value.StringFixed(2))

	_, err = ParseScore("-0.01")
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = ParseScore("abc")
	require.ErrorIs(t, err, ErrInvalidScore)
}
