package postgres

import (
	"context"
	"database/sql"

	"rollcall/internal/model"
)

const sessionColumns = `id, class_id, teacher_id, start_time, end_time, is_active, qr_payload, attendance_count, ended_at, created_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var ended sql.NullTime
	if err := row.Scan(&s.ID, &s.ClassID, &s.TeacherID, &s.StartTime, &s.EndTime, &s.IsActive, &s.QRPayload, &s.AttendanceCount, &ended, &s.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	if ended.Valid {
		s.EndedAt = &ended.Time
	}
	return &s, nil
}

// CreateSession inserts the session and bumps the class counter in one transaction.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE classes SET session_count = session_count + 1, updated_at = NOW() WHERE id = $1`, sess.ClassID)
		if err := expectOne(res, err); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (`+sessionColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, sess.ID, sess.ClassID, sess.TeacherID, sess.StartTime, sess.EndTime, sess.IsActive, sess.QRPayload, sess.AttendanceCount, sess.EndedAt, sess.CreatedAt)
		return mapErr(err)
	})
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// ListSessionsByClass returns sessions, most recent first.
func (s *Store) ListSessionsByClass(ctx context.Context, classID string) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE class_id = $1
		ORDER BY start_time DESC
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *sess)
	}
	return res, rows.Err()
}

// UpdateSession writes the lifecycle fields; attendance_count is owned by RecordAttendance.
func (s *Store) UpdateSession(ctx context.Context, sess *model.Session) error {
	return expectOne(s.db.ExecContext(ctx, `
		UPDATE sessions SET end_time = $2, is_active = $3, qr_payload = $4, ended_at = $5
		WHERE id = $1
	`, sess.ID, sess.EndTime, sess.IsActive, sess.QRPayload, sess.EndedAt))
}
