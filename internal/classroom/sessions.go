package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/repository"
)

// QRPayload is the unsigned JSON encoded into a session's QR code.
type QRPayload struct {
	SessionID  string    `json:"sessionId"`
	ClassID    string    `json:"classId"`
	ValidUntil time.Time `json:"validUntil"`
}

// CreateSession opens a session for the class lasting duration (DefaultSessionDuration when zero).
func (s *Service) CreateSession(ctx context.Context, teacherID, classID string, duration time.Duration) (*SessionView, error) {
	if duration == 0 {
		duration = DefaultSessionDuration
	}
	if duration < MinSessionDuration || duration > MaxSessionDuration {
		return nil, ErrInvalidDuration
	}
	if _, err := s.GetClass(ctx, teacherID, classID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &model.Session{
		ID:        uuid.NewString(),
		ClassID:   classID,
		TeacherID: teacherID,
		StartTime: now,
		EndTime:   now.Add(duration),
		IsActive:  true,
		CreatedAt: now,
	}
	payload, err := json.Marshal(QRPayload{SessionID: sess.ID, ClassID: classID, ValidUntil: sess.EndTime})
	if err != nil {
		return nil, err
	}
	sess.QRPayload = string(payload)

	if err := s.store.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.metrics.SessionCreated()
	s.log.Info().Str("session_id", sess.ID).Str("class_id", classID).Dur("duration", duration).Msg("session opened")
	v := s.view(sess)
	return &v, nil
}

// GetSession is the public read of a session.
func (s *Service) GetSession(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(sess)
	return &v, nil
}

// OwnedSession returns the session if teacherID owns it.
func (s *Service) OwnedSession(ctx context.Context, teacherID, id string) (*SessionView, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.TeacherID != teacherID {
		return nil, ErrAccessDenied
	}
	v := s.view(sess)
	return &v, nil
}

func (s *Service) ListSessions(ctx context.Context, teacherID, classID string) ([]SessionView, error) {
	if _, err := s.GetClass(ctx, teacherID, classID); err != nil {
		return nil, err
	}
	sessions, err := s.store.ListSessionsByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		out = append(out, s.view(&sessions[i]))
	}
	return out, nil
}

// EndSession closes the session and queues its summary. Ending an ended session changes nothing.
func (s *Service) EndSession(ctx context.Context, teacherID, id string) (*SessionView, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.TeacherID != teacherID {
		return nil, ErrAccessDenied
	}
	if !sess.IsActive {
		v := s.view(sess)
		return &v, nil
	}

	now := s.now().UTC()
	sess.IsActive = false
	sess.EndedAt = &now
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	msg, err := queue.NewMessage(queue.KindSessionSummary, queue.SessionSummary{SessionID: sess.ID, TeacherID: teacherID})
	if err == nil {
		err = s.jobs.Publish(ctx, msg)
	}
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID).Msg("queue session summary")
	}
	v := s.view(sess)
	return &v, nil
}

// SessionQR renders the session's QR payload as a PNG.
func (s *Service) SessionQR(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return RenderQR(sess.QRPayload)
}

func (s *Service) loadSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}
