package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rollcall/internal/auth"
	"rollcall/internal/queue"
	"rollcall/internal/repository/memory"
)

func newService(t *testing.T, requireVerified bool) (*Service, *memory.Store, *queue.InMemory) {
	t.Helper()
	store := memory.New()
	jobs := queue.NewInMemory(16)
	svc := NewService(store, jobs, Options{
		Issuer:               "rollcall",
		SigningKey:           "k",
		AccessTTL:            time.Hour,
		VerifyTTL:            time.Hour,
		RequireVerifiedEmail: requireVerified,
	}, zerolog.Nop())
	return svc, store, jobs
}

func TestRegisterValidates(t *testing.T) {
	svc, _, _ := newService(t, false)
	ctx := context.Background()
	cases := []struct {
		name, email, password string
		want                  error
	}{
		{"", "ada@school.edu", "secret1", ErrNameRequired},
		{"Ada", "not-an-email", "secret1", ErrInvalidEmail},
		{"Ada", "ada@school.edu", "12345", ErrWeakPassword},
		{"Ada", "ada@school.edu", strings.Repeat("a", 73), ErrPasswordTooLong},
		{"Ada", "ada@school.edu", strings.Repeat("é", 40), ErrPasswordTooLong},
	}
	for _, c := range cases {
		if _, err := svc.Register(ctx, c.name, c.email, c.password); !errors.Is(err, c.want) {
			t.Errorf("Register(%q, %q) error = %v, want %v", c.name, c.email, err, c.want)
		}
	}
}

func TestRegisterAcceptsLongestPassword(t *testing.T) {
	svc, _, _ := newService(t, false)
	ctx := context.Background()
	password := strings.Repeat("a", 72)

	if _, err := svc.Register(ctx, "Ada", "ada@school.edu", password); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "ada@school.edu", password); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestRegisterQueuesVerification(t *testing.T) {
	svc, _, jobs := newService(t, false)
	ctx := context.Background()

	teacher, err := svc.Register(ctx, "Ada", " Ada@School.edu ", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if teacher.Email != "ada@school.edu" || teacher.IsVerified || teacher.VerificationToken == "" {
		t.Errorf("teacher = %+v", teacher)
	}
	if teacher.PasswordHash == "secret1" || !auth.CheckPassword(teacher.PasswordHash, "secret1") {
		t.Error("password not hashed with bcrypt")
	}
	if jobs.Len() != 1 {
		t.Fatalf("queued jobs = %d, want 1", jobs.Len())
	}

	if _, err := svc.Register(ctx, "Ada 2", "ada@school.edu", "secret2"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate Register error = %v, want ErrEmailTaken", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newService(t, false)
	ctx := context.Background()
	teacher, err := svc.Register(ctx, "Ada", "ada@school.edu", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(ctx, "ada@school.edu", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@school.edu", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v", err)
	}

	sess, err := svc.Login(ctx, "ADA@school.edu", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := auth.Parse(sess.Token, "k", "rollcall")
	if err != nil || claims.Subject != teacher.ID || claims.Role != auth.RoleTeacher {
		t.Errorf("token claims = %+v, %v", claims, err)
	}
	if sess.Teacher.LastLoginAt == nil {
		t.Error("LastLoginAt not set")
	}
}

func TestLoginRequiresVerificationWhenConfigured(t *testing.T) {
	svc, _, _ := newService(t, true)
	ctx := context.Background()
	teacher, err := svc.Register(ctx, "Ada", "ada@school.edu", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "ada@school.edu", "secret1"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("unverified Login error = %v, want ErrEmailNotVerified", err)
	}
	if _, err := svc.Verify(ctx, teacher.VerificationToken); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := svc.Login(ctx, "ada@school.edu", "secret1"); err != nil {
		t.Fatalf("verified Login: %v", err)
	}
}

func TestVerify(t *testing.T) {
	svc, store, _ := newService(t, false)
	ctx := context.Background()
	teacher, err := svc.Register(ctx, "Ada", "ada@school.edu", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Verify(ctx, "bogus"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bogus token error = %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Verify(ctx, teacher.VerificationToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired token error = %v", err)
	}

	svc.now = time.Now
	got, err := svc.Verify(ctx, teacher.VerificationToken)
	if err != nil || !got.IsVerified {
		t.Fatalf("Verify = %+v, %v", got, err)
	}
	stored, _ := store.GetTeacher(ctx, teacher.ID)
	if !stored.IsVerified || stored.VerificationToken != "" {
		t.Errorf("stored teacher = %+v", stored)
	}
}

func TestResendVerification(t *testing.T) {
	svc, store, jobs := newService(t, false)
	ctx := context.Background()
	teacher, err := svc.Register(ctx, "Ada", "ada@school.edu", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.ResendVerification(ctx, "ada@school.edu"); err != nil {
		t.Fatal(err)
	}
	stored, _ := store.GetTeacher(ctx, teacher.ID)
	if stored.VerificationToken == teacher.VerificationToken {
		t.Error("token not rotated")
	}
	if jobs.Len() != 2 {
		t.Errorf("queued jobs = %d, want 2", jobs.Len())
	}
	if err := svc.ResendVerification(ctx, "nobody@school.edu"); err != nil {
		t.Errorf("unknown email error = %v, want nil", err)
	}
}
