package postgres

import (
	"context"
	"time"

	"rollcall/internal/model"
)

const classColumns = `id, teacher_id, subject, roll_range, session_count, created_at, updated_at`

func scanClass(row interface{ Scan(...any) error }) (*model.Class, error) {
	var c model.Class
	if err := row.Scan(&c.ID, &c.TeacherID, &c.Subject, &c.RollRange, &c.SessionCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) CreateClass(ctx context.Context, c *model.Class) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classes (`+classColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.TeacherID, c.Subject, c.RollRange, c.SessionCount, c.CreatedAt, c.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetClass(ctx context.Context, id string) (*model.Class, error) {
	return scanClass(s.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
}

// ListClassesByTeacher returns the teacher's classes, newest first.
func (s *Store) ListClassesByTeacher(ctx context.Context, teacherID string) ([]model.Class, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+classColumns+` FROM classes
		WHERE teacher_id = $1
		ORDER BY created_at DESC
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

// UpdateClass changes subject and range; the session counter is left alone.
func (s *Store) UpdateClass(ctx context.Context, c *model.Class) error {
	c.UpdatedAt = time.Now().UTC()
	return expectOne(s.db.ExecContext(ctx, `
		UPDATE classes SET subject = $2, roll_range = $3, updated_at = $4
		WHERE id = $1
	`, c.ID, c.Subject, c.RollRange, c.UpdatedAt))
}

// DeleteClass removes the class; sessions, students and attendance cascade.
func (s *Store) DeleteClass(ctx context.Context, id string) error {
	return expectOne(s.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id))
}
