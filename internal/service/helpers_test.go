package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/events"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type fixture struct {
	admin    models.User
	teacher  models.User
	other    models.User
	student  models.User
	group    models.Group
	homework models.Homework
}

func (f fixture) actor(user models.User) ActivityActor {
	return ActivityActor{ID: user.ID, Role: user.Role}
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	hash, err := HashPassword("secret-pass")
	require.NoError(t, err)

	admin := models.User{FullName: "Admin", Phone: "+998900000000", Role: models.RoleAdmin, PasswordHash: hash, IsActive: true}
	teacher := models.User{FullName: "Teacher One", Phone: "+998900000001", Role: models.RoleTeacher, PasswordHash: hash, IsActive: true}
	other := models.User{FullName: "Teacher Two", Phone: "+998900000003", Role: models.RoleTeacher, PasswordHash: hash, IsActive: true}
	for _, user := range []*models.User{&admin, &teacher, &other} {
		require.NoError(t, db.Create(user).Error)
	}

	group := models.Group{Name: "G-1", TeacherID: &teacher.ID}
	require.NoError(t, db.Create(&group).Error)

	student := models.User{FullName: "Student One", Phone: "+998900000002", Role: models.RoleStudent, PasswordHash: hash, GroupID: &group.ID, IsActive: true}
	require.NoError(t, db.Create(&student).Error)

	homework := models.Homework{
		Title:     "Loops",
		Points:    100,
		StartDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Deadline:  time.Date(2025, 6, 20, 23, 59, 0, 0, time.UTC),
		LineLimit: 5,
		TeacherID: teacher.ID,
		GroupID:   group.ID,
	}
	require.NoError(t, repository.NewHomeworkRepository(db).Create(context.Background(), &homework))

	return fixture{admin: admin, teacher: teacher, other: other, student: student, group: group, homework: homework}
}

// seedGrade stores a submission for the fixture student with the given grade columns.
func seedGrade(t *testing.T, db *gorm.DB, fx fixture, grade models.Grade) models.Grade {
	t.Helper()

	submission := models.Submission{HomeworkID: fx.homework.ID, StudentID: fx.student.ID, SubmittedAt: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, repository.NewSubmissionRepository(db).CreateWithFiles(context.Background(), &submission))

	grade.ID = submission.Grade.ID
	grade.SubmissionID = submission.ID
	grade.CreatedAt = submission.Grade.CreatedAt
	require.NoError(t, db.Save(&grade).Error)
	return grade
}

func score(value string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(value), Valid: true}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

type memoryActivityRepo struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func (m *memoryActivityRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.GradeEvent
}

func (p *recordingPublisher) PublishGrade(ctx context.Context, event events.GradeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, event := range p.events {
		if event.Type == eventType {
			total++
		}
	}
	return total
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrString(v string) *string {
	return &v
}
