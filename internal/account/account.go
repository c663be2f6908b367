// Package account handles teacher registration, login and email verification.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rollcall/internal/auth"
	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/repository"
)

var (
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidEmail       = errors.New("valid email address is required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid verification link")
	ErrTokenExpired       = errors.New("verification link has expired")
	ErrTeacherNotFound    = errors.New("teacher not found")
)

const (
	minPasswordLen = 6
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordLen = 72
)

// Options configures token lifetimes and the login policy.
type Options struct {
	Issuer               string
	SigningKey           string
	AccessTTL            time.Duration
	VerifyTTL            time.Duration
	RequireVerifiedEmail bool
}

// Publisher is the part of the job queue the service needs.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service implements the account operations.
type Service struct {
	teachers repository.Teachers
	jobs     Publisher
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(teachers repository.Teachers, jobs Publisher, opts Options, log zerolog.Logger) *Service {
	return &Service{teachers: teachers, jobs: jobs, opts: opts, log: log, now: time.Now}
}

// Session is the result of a successful login.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Teacher   *model.Teacher `json:"teacher"`
}

// Register creates an unverified teacher and queues the verification email.
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.Teacher, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, ErrNameRequired
	}
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if len(password) > maxPasswordLen {
		return nil, ErrPasswordTooLong
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	expires := now.Add(s.opts.VerifyTTL)
	t := &model.Teacher{
		ID:                    uuid.NewString(),
		Name:                  name,
		Email:                 email,
		PasswordHash:          hash,
		VerificationToken:     newToken(),
		VerificationExpiresAt: &expires,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.teachers.CreateTeacher(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create teacher: %w", err)
	}
	s.queueVerification(ctx, t)
	return t, nil
}

// Login checks the password and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	t, err := s.teachers.GetTeacherByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load teacher: %w", err)
	}
	if !auth.CheckPassword(t.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if s.opts.RequireVerifiedEmail && !t.IsVerified {
		return nil, ErrEmailNotVerified
	}

	now := s.now().UTC()
	t.LastLoginAt = &now
	if err := s.teachers.UpdateTeacher(ctx, t); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	tok, err := auth.Issue(t.ID, t.Email, auth.RoleTeacher, s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt, Teacher: t}, nil
}

// Verify marks the teacher owning token as verified.
func (s *Service) Verify(ctx context.Context, token string) (*model.Teacher, error) {
	t, err := s.teachers.GetTeacherByVerificationToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load teacher: %w", err)
	}
	if t.IsVerified {
		return t, nil
	}
	if t.VerificationExpiresAt != nil && s.now().After(*t.VerificationExpiresAt) {
		return nil, ErrTokenExpired
	}
	t.IsVerified = true
	t.VerificationToken = ""
	t.VerificationExpiresAt = nil
	t.UpdatedAt = s.now().UTC()
	if err := s.teachers.UpdateTeacher(ctx, t); err != nil {
		return nil, fmt.Errorf("verify teacher: %w", err)
	}
	return t, nil
}

// ResendVerification issues a fresh token. Unknown and verified addresses are a silent no-op so the
// endpoint does not reveal which emails are registered.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	t, err := s.teachers.GetTeacherByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load teacher: %w", err)
	}
	if t.IsVerified {
		return nil
	}
	now := s.now().UTC()
	expires := now.Add(s.opts.VerifyTTL)
	t.VerificationToken = newToken()
	t.VerificationExpiresAt = &expires
	t.UpdatedAt = now
	if err := s.teachers.UpdateTeacher(ctx, t); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.queueVerification(ctx, t)
	return nil
}

// Profile returns the teacher with id.
func (s *Service) Profile(ctx context.Context, id string) (*model.Teacher, error) {
	t, err := s.teachers.GetTeacher(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTeacherNotFound
	}
	return t, err
}

// queueVerification enqueues the email. A queue failure is logged, not returned: the teacher can
// ask for a resend.
func (s *Service) queueVerification(ctx context.Context, t *model.Teacher) {
	msg, err := queue.NewMessage(queue.KindVerifyEmail, queue.VerifyEmail{
		TeacherID: t.ID, Name: t.Name, Email: t.Email, Token: t.VerificationToken,
	})
	if err == nil {
		err = s.jobs.Publish(ctx, msg)
	}
	if err != nil {
		s.log.Error().Err(err).Str("teacher_id", t.ID).Msg("queue verification email")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}
