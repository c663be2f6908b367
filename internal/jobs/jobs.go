// Package jobs processes queued background work: verification emails and session summaries.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"rollcall/internal/attendance"
	"rollcall/internal/mail"
	"rollcall/internal/queue"
	"rollcall/internal/repository"
)

// ErrUnknownKind is returned for messages with a type no handler claims.
var ErrUnknownKind = errors.New("unknown job kind")

// Summaries computes the figures for a finished session.
type Summaries interface {
	SessionSummary(ctx context.Context, sessionID string) (*attendance.Summary, error)
}

// Processor turns queue messages into emails.
type Processor struct {
	teachers  repository.Teachers
	summaries Summaries
	mailer    mail.Mailer
	baseURL   string
	log       zerolog.Logger
}

func NewProcessor(teachers repository.Teachers, summaries Summaries, mailer mail.Mailer, baseURL string, log zerolog.Logger) *Processor {
	return &Processor{teachers: teachers, summaries: summaries, mailer: mailer, baseURL: baseURL, log: log}
}

// Run consumes q until ctx is cancelled. A failing job is logged and dropped.
func (p *Processor) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	p.log.Info().Msg("worker started, waiting for jobs")
	for msg := range messages {
		if err := p.Handle(ctx, msg); err != nil {
			p.log.Error().Err(err).Str("kind", msg.Type).Msg("job failed")
			continue
		}
		p.log.Debug().Str("kind", msg.Type).Msg("job done")
	}
	p.log.Info().Msg("worker stopped")
	return nil
}

// Handle processes one message.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.KindVerifyEmail:
		var job queue.VerifyEmail
		if err := msg.Decode(&job); err != nil {
			return err
		}
		return p.mailer.Send(ctx, mail.Verification(job.Email, job.Name, p.baseURL, job.Token))
	case queue.KindSessionSummary:
		var job queue.SessionSummary
		if err := msg.Decode(&job); err != nil {
			return err
		}
		return p.sessionSummary(ctx, job)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, msg.Type)
	}
}

func (p *Processor) sessionSummary(ctx context.Context, job queue.SessionSummary) error {
	sum, err := p.summaries.SessionSummary(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("summarize session %s: %w", job.SessionID, err)
	}
	t, err := p.teachers.GetTeacher(ctx, job.TeacherID)
	if err != nil {
		return fmt.Errorf("load teacher %s: %w", job.TeacherID, err)
	}
	return p.mailer.Send(ctx, mail.SessionSummary(t.Email, mail.Summary{
		Subject:    sum.Subject,
		Present:    sum.Present,
		ClassSize:  sum.ClassSize,
		Percentage: sum.Percentage,
		Absent:     sum.Absent,
	}))
}
