package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/repository"
)

type stubArchiver struct {
	uploaded []string
	err      error
}

func (s *stubArchiver) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	content, _ := io.ReadAll(reader)
	s.uploaded = append(s.uploaded, name+":"+string(content))
	return "https://archive.example.com/" + name, nil
}

func newSubmissionService(t *testing.T, archiver FileArchiver) (*submissionService, fixture) {
	t.Helper()

	db := setupTestDB(t)
	fx := seedFixture(t, db)
	svc := NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewHomeworkRepository(db),
		repository.NewUserRepository(db),
		testValidator(),
		archiver,
		testLogger(),
	).(*submissionService)
	svc.now = fixedClock(time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC))
	return svc, fx
}

func upload(name, content string) dto.SubmissionFileUpload {
	return dto.SubmissionFileUpload{Name: name, Content: []byte(content)}
}

func TestSubmissionSubmitStoresFilesAndArchives(t *testing.T) {
	archiver := &stubArchiver{}
	svc, fx := newSubmissionService(t, archiver)

	response, err := svc.Submit(context.Background(), fx.actor(fx.student), dto.SubmissionCreateRequest{
		HomeworkID: fx.homework.ID,
		Files:      []dto.SubmissionFileUpload{upload("answer.txt", "  a\nb\n\nc  \n")},
	})
	require.NoError(t, err)
	require.Len(t, response.Files, 1)
	require.Equal(t, 3, response.Files[0].LineCount)
	require.Equal(t, "https://archive.example.com/answer.txt", response.Files[0].ArchiveURL)
	require.NotNil(t, response.Grade)
	require.Equal(t, "unscored", response.Grade.State)
	require.Equal(t, "ungraded", response.GradingStatus)
	require.Len(t, archiver.uploaded, 1)
}

func TestSubmissionSubmitKeepsSubmissionWhenArchiveFails(t *testing.T) {
	svc, fx := newSubmissionService(t, &stubArchiver{err: errors.New("offline")})

	response, err := svc.Submit(context.Background(), fx.actor(fx.student), dto.SubmissionCreateRequest{
		HomeworkID: fx.homework.ID,
		Files:      []dto.SubmissionFileUpload{upload("answer.txt", "print")},
	})
	require.NoError(t, err)
	require.Empty(t, response.Files[0].ArchiveURL)
}

func TestSubmissionSubmitBoundaryChecks(t *testing.T) {
	cases := []struct {
		name string
		file dto.SubmissionFileUpload
		want error
	}{
		{"extension", upload("answer.py", "print(1)"), ErrFileExtensionNotAllowed},
		{"binary", dto.SubmissionFileUpload{Name: "answer.txt", Content: []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}}, ErrSubmissionNotText},
		{"invalid utf8", dto.SubmissionFileUpload{Name: "answer.txt", Content: []byte{0xff, 0xfe, 0xfd}}, ErrSubmissionNotText},
		{"too long", upload("answer.txt", strings.Repeat("line\n", 6)), ErrSubmissionTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, fx := newSubmissionService(t, nil)
			_, err := svc.Submit(context.Background(), fx.actor(fx.student), dto.SubmissionCreateRequest{
				HomeworkID: fx.homework.ID,
				Files:      []dto.SubmissionFileUpload{tc.file},
			})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSubmissionSubmitRejectsClosedHomework(t *testing.T) {
	svc, fx := newSubmissionService(t, nil)
	request := dto.SubmissionCreateRequest{HomeworkID: fx.homework.ID, Files: []dto.SubmissionFileUpload{upload("a.txt", "x")}}

	svc.now = fixedClock(time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC))
	_, err := svc.Submit(context.Background(), fx.actor(fx.student), request)
	require.ErrorIs(t, err, ErrHomeworkClosed)

	svc.now = fixedClock(time.Date(2025, 6, 13, 23, 0, 0, 0, time.UTC))
	_, err = svc.Submit(context.Background(), fx.actor(fx.student), request)
	require.ErrorIs(t, err, ErrHomeworkClosed)
}

func TestSubmissionListScopes(t *testing.T) {
	svc, fx := newSubmissionService(t, nil)
	ctx := context.Background()

	created, err := svc.Submit(ctx, fx.actor(fx.student), dto.SubmissionCreateRequest{
		HomeworkID: fx.homework.ID,
		Files:      []dto.SubmissionFileUpload{upload("a.txt", "x")},
	})
	require.NoError(t, err)

	own, err := svc.List(ctx, fx.actor(fx.student), dto.SubmissionListRequest{})
	require.NoError(t, err)
	require.Len(t, own, 1)

	groupID := fx.group.ID
	teacherView, err := svc.List(ctx, fx.actor(fx.teacher), dto.SubmissionListRequest{GroupID: &groupID})
	require.NoError(t, err)
	require.Len(t, teacherView, 1)

	_, err = svc.List(ctx, fx.actor(fx.other), dto.SubmissionListRequest{GroupID: &groupID})
	require.ErrorIs(t, err, ErrHomeworkForbidden)

	_, err = svc.Get(ctx, fx.actor(fx.other), created.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionListTeacherFilterErrors(t *testing.T) {
	svc, fx := newSubmissionService(t, nil)
	ctx := context.Background()

	_, err := svc.List(ctx, fx.actor(fx.teacher), dto.SubmissionListRequest{})
	require.ErrorIs(t, err, ErrSubmissionFilterRequired)

	_, err = svc.List(ctx, fx.actor(fx.teacher), dto.SubmissionListRequest{GroupID: ptrUint(9999)})
	require.ErrorIs(t, err, ErrGroupNotFound)

	_, err = svc.List(ctx, fx.actor(fx.teacher), dto.SubmissionListRequest{HomeworkID: ptrUint(9999)})
	require.ErrorIs(t, err, ErrHomeworkNotFound)

	records, err := svc.List(ctx, fx.actor(fx.admin), dto.SubmissionListRequest{})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestIsTextContent(t *testing.T) {
	require.True(t, isTextContent([]byte("package main\n")))
	require.True(t, isTextContent([]byte(`{"a": 1}`)))
	require.True(t, isTextContent([]byte("salom dunyo ✓")))
	require.True(t, isTextContent(nil))
	require.False(t, isTextContent([]byte("%PDF-1.4\x00\x01")))
}
