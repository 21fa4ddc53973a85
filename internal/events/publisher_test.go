package events

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNATSPublisherWithoutConnectionNotifiesListeners(t *testing.T) {
	var received []GradeEvent
	publisher := NewNATSPublisher(nil, "hms:prod", zerolog.Nop(), func(_ context.Context, event GradeEvent) {
		received = append(received, event)
	})

	err := publisher.PublishGrade(context.Background(), GradeEvent{Type: GradeApproved, GradeID: 3, SubmissionID: 4})
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.False(t, received[0].OccurredAt.IsZero())
	require.Equal(t, "hms.prod.grades.grade.approved", publisher.Subject(GradeApproved))
}
