package postgres

import (
	"context"
	"time"

	"rollcall/internal/model"
)

const studentColumns = `id, roll_number, class_id, name, face_id, attendance_count, created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (*model.Student, error) {
	var st model.Student
	if err := row.Scan(&st.ID, &st.RollNumber, &st.ClassID, &st.Name, &st.FaceID, &st.AttendanceCount, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &st, nil
}

// CreateStudent inserts a student; a roll already taken in the class yields ErrDuplicate.
func (s *Store) CreateStudent(ctx context.Context, st *model.Student) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, st.ID, st.RollNumber, st.ClassID, st.Name, st.FaceID, st.AttendanceCount, st.CreatedAt, st.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetStudentByRoll(ctx context.Context, classID, rollNumber string) (*model.Student, error) {
	return scanStudent(s.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE class_id = $1 AND roll_number = $2
	`, classID, rollNumber))
}

func (s *Store) ListStudentsByClass(ctx context.Context, classID string) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE class_id = $1
		ORDER BY roll_number
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *st)
	}
	return res, rows.Err()
}

// UpdateStudent writes name and face id.
func (s *Store) UpdateStudent(ctx context.Context, st *model.Student) error {
	st.UpdatedAt = time.Now().UTC()
	return expectOne(s.db.ExecContext(ctx, `
		UPDATE students SET name = $2, face_id = $3, updated_at = $4
		WHERE id = $1
	`, st.ID, st.Name, st.FaceID, st.UpdatedAt))
}

func (s *Store) DeleteStudent(ctx context.Context, st *model.Student) error {
	return expectOne(s.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, st.ID))
}
