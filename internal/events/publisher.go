package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Grade event types.
const (
	GradeApproved  = "grade.approved"
	GradeReset     = "grade.reset"
	GradeUpdated   = "grade.updated"
	GradeFinalized = "submission.finalized"
)

// GradeEvent is broadcast whenever the teacher side of a grade changes.
type GradeEvent struct {
	Type         string    `json:"type"`
	GradeID      uint      `json:"grade_id,omitempty"`
	SubmissionID uint      `json:"submission_id"`
	GroupID      uint      `json:"group_id,omitempty"`
	ActorID      uint      `json:"actor_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher emits grade events.
type Publisher interface {
	PublishGrade(ctx context.Context, event GradeEvent) error
}

// Listener is notified in-process after a grade event is published.
type Listener func(ctx context.Context, event GradeEvent)

// NATSPublisher publishes events to "<base>.grades.<type>" subjects.
type NATSPublisher struct {
	conn      *nats.Conn
	base      string
	listeners []Listener
	logger    zerolog.Logger
}

// NewNATSPublisher builds a publisher. A nil connection only notifies listeners.
func NewNATSPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger, listeners ...Listener) *NATSPublisher {
	base := strings.Trim(strings.ReplaceAll(subjectBase, ":", "."), ".")
	if base == "" {
		base = "hms"
	}
	return &NATSPublisher{
		conn:      conn,
		base:      base,
		listeners: listeners,
		logger:    logger.With().Str("component", "grade_events").Logger(),
	}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.base + ".grades." + eventType
}

func (p *NATSPublisher) PublishGrade(ctx context.Context, event GradeEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	for _, listener := range p.listeners {
		listener(ctx, event)
	}

	if p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(event.Type), payload); err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish grade event")
		return err
	}
	return nil
}
