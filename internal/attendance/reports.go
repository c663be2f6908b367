package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"rollcall/internal/model"
	"rollcall/internal/repository"
	"rollcall/internal/roll"
)

// StudentReport is one row of a class report.
type StudentReport struct {
	StudentID       string  `json:"studentId"`
	RollNumber      string  `json:"rollNumber"`
	Name            string  `json:"name,omitempty"`
	AttendanceCount int     `json:"attendanceCount"`
	Percentage      float64 `json:"percentage"`
}

// ClassReport summarizes attendance across every session of a class.
type ClassReport struct {
	ClassID       string          `json:"classId"`
	Subject       string          `json:"subject"`
	TotalSessions int             `json:"totalSessions"`
	Students      []StudentReport `json:"students"`
}

// Summary is the head count of one session.
type Summary struct {
	SessionID  string   `json:"sessionId"`
	ClassID    string   `json:"classId"`
	TeacherID  string   `json:"teacherId"`
	Subject    string   `json:"subject"`
	Present    int      `json:"present"`
	ClassSize  int      `json:"classSize"`
	Percentage float64  `json:"percentage"`
	Absent     []string `json:"absent"`
}

// SessionAttendance lists the records of a session owned by teacherID.
func (s *Service) SessionAttendance(ctx context.Context, teacherID, sessionID string) ([]model.Attendance, error) {
	sess, err := s.ownedSession(ctx, teacherID, sessionID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListAttendanceBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	if records == nil {
		records = []model.Attendance{}
	}
	return records, nil
}

// ClassReport computes each registered student's attendance percentage over the class's sessions.
func (s *Service) ClassReport(ctx context.Context, teacherID, classID string) (*ClassReport, error) {
	c, err := s.ownedClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	students, err := s.store.ListStudentsByClass(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	rep := &ClassReport{ClassID: c.ID, Subject: c.Subject, TotalSessions: c.SessionCount, Students: make([]StudentReport, 0, len(students))}
	for _, st := range students {
		rep.Students = append(rep.Students, StudentReport{
			StudentID:       st.ID,
			RollNumber:      st.RollNumber,
			Name:            st.Name,
			AttendanceCount: st.AttendanceCount,
			Percentage:      roll.Percent(st.AttendanceCount, c.SessionCount),
		})
	}
	return rep, nil
}

// SessionSummaryFor is SessionSummary restricted to the session's owner.
func (s *Service) SessionSummaryFor(ctx context.Context, teacherID, sessionID string) (*Summary, error) {
	if _, err := s.ownedSession(ctx, teacherID, sessionID); err != nil {
		return nil, err
	}
	return s.SessionSummary(ctx, sessionID)
}

// SessionSummary counts who was present. Class size is the size of the roll range; Absent lists
// registered students without a record.
func (s *Service) SessionSummary(ctx context.Context, sessionID string) (*Summary, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetClass(ctx, sess.ClassID)
	if err != nil {
		return nil, fmt.Errorf("load class %s: %w", sess.ClassID, err)
	}
	rng, err := roll.ParseRange(c.RollRange)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", c.ID, err)
	}
	records, err := s.store.ListAttendanceBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	students, err := s.store.ListStudentsByClass(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	present := make(map[string]bool, len(records))
	for _, r := range records {
		present[r.StudentID] = true
	}
	absent := []string{}
	for _, st := range students {
		if !present[st.ID] {
			absent = append(absent, st.RollNumber)
		}
	}
	sort.Strings(absent)

	return &Summary{
		SessionID:  sess.ID,
		ClassID:    c.ID,
		TeacherID:  sess.TeacherID,
		Subject:    c.Subject,
		Present:    len(records),
		ClassSize:  rng.Size(),
		Percentage: roll.Percent(len(records), rng.Size()),
		Absent:     absent,
	}, nil
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

func (s *Service) ownedSession(ctx context.Context, teacherID, id string) (*model.Session, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.TeacherID != teacherID {
		return nil, ErrAccessDenied
	}
	return sess, nil
}
