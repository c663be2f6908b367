package postgres

import (
	"context"
	"database/sql"

	"rollcall/internal/model"
)

const attendanceColumns = `id, session_id, student_id, roll_number, marked_at, confidence, verification_status, image_key`

// HasAttendance reports whether the student is already marked for the session.
func (s *Store) HasAttendance(ctx context.Context, sessionID, studentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance WHERE session_id = $1 AND student_id = $2)
	`, sessionID, studentID).Scan(&exists)
	return exists, err
}

// RecordAttendance inserts the record and bumps both counters in one transaction.
// The (session_id, student_id) unique constraint turns a racing duplicate into ErrDuplicate.
func (s *Store) RecordAttendance(ctx context.Context, a *model.Attendance) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (`+attendanceColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, a.ID, a.SessionID, a.StudentID, a.RollNumber, a.MarkedAt, a.Confidence, a.VerificationStatus, a.ImageKey)
		if err != nil {
			return mapErr(err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE sessions SET attendance_count = attendance_count + 1 WHERE id = $1`, a.SessionID)
		if err := expectOne(res, err); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, `UPDATE students SET attendance_count = attendance_count + 1, updated_at = NOW() WHERE id = $1`, a.StudentID)
		return expectOne(res, err)
	})
}

// ListAttendanceBySession returns records in marking order.
func (s *Store) ListAttendanceBySession(ctx context.Context, sessionID string) ([]model.Attendance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attendanceColumns+` FROM attendance
		WHERE session_id = $1
		ORDER BY marked_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Attendance
	for rows.Next() {
		var a model.Attendance
		if err := rows.Scan(&a.ID, &a.SessionID, &a.StudentID, &a.RollNumber, &a.MarkedAt, &a.Confidence, &a.VerificationStatus, &a.ImageKey); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
