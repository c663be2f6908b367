package postgres

import (
	"context"
	"database/sql"
	"time"

	"rollcall/internal/model"
)

const teacherColumns = `id, name, email, password_hash, is_verified, verification_token, verification_expires_at, last_login_at, created_at, updated_at`

func scanTeacher(row interface{ Scan(...any) error }) (*model.Teacher, error) {
	var t model.Teacher
	var token sql.NullString
	var expires, lastLogin sql.NullTime
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash, &t.IsVerified, &token, &expires, &lastLogin, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	t.VerificationToken = token.String
	if expires.Valid {
		t.VerificationExpiresAt = &expires.Time
	}
	if lastLogin.Valid {
		t.LastLoginAt = &lastLogin.Time
	}
	return &t, nil
}

// CreateTeacher inserts a teacher; a taken email yields ErrDuplicate.
func (s *Store) CreateTeacher(ctx context.Context, t *model.Teacher) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teachers (`+teacherColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, t.ID, t.Name, t.Email, t.PasswordHash, t.IsVerified, nullString(t.VerificationToken), t.VerificationExpiresAt, t.LastLoginAt, t.CreatedAt, t.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetTeacher(ctx context.Context, id string) (*model.Teacher, error) {
	return scanTeacher(s.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id))
}

func (s *Store) GetTeacherByEmail(ctx context.Context, email string) (*model.Teacher, error) {
	return scanTeacher(s.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE LOWER(email) = LOWER($1)`, email))
}

func (s *Store) GetTeacherByVerificationToken(ctx context.Context, token string) (*model.Teacher, error) {
	return scanTeacher(s.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE verification_token = $1`, token))
}

// UpdateTeacher rewrites the mutable teacher fields.
func (s *Store) UpdateTeacher(ctx context.Context, t *model.Teacher) error {
	t.UpdatedAt = time.Now().UTC()
	return expectOne(s.db.ExecContext(ctx, `
		UPDATE teachers
		SET name = $2, email = $3, password_hash = $4, is_verified = $5,
			verification_token = $6, verification_expires_at = $7, last_login_at = $8, updated_at = $9
		WHERE id = $1
	`, t.ID, t.Name, t.Email, t.PasswordHash, t.IsVerified, nullString(t.VerificationToken), t.VerificationExpiresAt, t.LastLoginAt, t.UpdatedAt))
}
