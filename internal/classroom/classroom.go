// Package classroom manages classes and their attendance sessions.
package classroom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/repository"
	"rollcall/internal/roll"
)

var (
	ErrSubjectRequired  = errors.New("subject is required")
	ErrInvalidRollRange = errors.New("roll number range must be two 10-digit roll numbers like 2024179001-2024179060")
	ErrClassNotFound    = errors.New("class not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrAccessDenied     = errors.New("access denied")
	ErrInvalidDuration  = errors.New("session duration must be between 1 minute and 24 hours")
)

const (
	DefaultSessionDuration = 10 * time.Minute
	MinSessionDuration     = time.Minute
	MaxSessionDuration     = 24 * time.Hour
)

// Store is the persistence the service needs.
type Store interface {
	repository.Classes
	repository.Sessions
}

// Publisher is the part of the job queue the service needs.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service implements class and session management for teachers.
type Service struct {
	store   Store
	jobs    Publisher
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, jobs Publisher, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{store: store, jobs: jobs, metrics: m, log: log, now: time.Now}
}

// SessionView is a session as served to clients, with its open state computed at read time.
type SessionView struct {
	model.Session
	IsOpen bool `json:"isOpen"`
}

func (s *Service) view(sess *model.Session) SessionView {
	return SessionView{Session: *sess, IsOpen: sess.IsOpen(s.now())}
}

// ---- classes ----

func (s *Service) CreateClass(ctx context.Context, teacherID, subject, rollRange string) (*model.Class, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrSubjectRequired
	}
	r, err := roll.ParseRange(rollRange)
	if err != nil {
		return nil, ErrInvalidRollRange
	}
	now := s.now().UTC()
	c := &model.Class{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		Subject:   subject,
		RollRange: r.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateClass(ctx, c); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return c, nil
}

func (s *Service) ListClasses(ctx context.Context, teacherID string) ([]model.Class, error) {
	classes, err := s.store.ListClassesByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	if classes == nil {
		classes = []model.Class{}
	}
	return classes, nil
}

// GetClass returns the class if teacherID owns it.
func (s *Service) GetClass(ctx context.Context, teacherID, classID string) (*model.Class, error) {
	c, err := s.store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("load class: %w", err)
	}
	if c.TeacherID != teacherID {
		return nil, ErrAccessDenied
	}
	return c, nil
}

// UpdateClass changes the subject and/or roll range; nil leaves a field as is.
func (s *Service) UpdateClass(ctx context.Context, teacherID, classID string, subject, rollRange *string) (*model.Class, error) {
	c, err := s.GetClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	if subject != nil {
		v := strings.TrimSpace(*subject)
		if v == "" {
			return nil, ErrSubjectRequired
		}
		c.Subject = v
	}
	if rollRange != nil {
		r, err := roll.ParseRange(*rollRange)
		if err != nil {
			return nil, ErrInvalidRollRange
		}
		c.RollRange = r.String()
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateClass(ctx, c); err != nil {
		return nil, fmt.Errorf("update class: %w", err)
	}
	return c, nil
}

func (s *Service) DeleteClass(ctx context.Context, teacherID, classID string) error {
	if _, err := s.GetClass(ctx, teacherID, classID); err != nil {
		return err
	}
	if err := s.store.DeleteClass(ctx, classID); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}
