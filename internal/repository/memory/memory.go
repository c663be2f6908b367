// Package memory is an in-process repository.Store for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"rollcall/internal/model"
	"rollcall/internal/repository"
)

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu         sync.RWMutex
	teachers   map[string]model.Teacher
	classes    map[string]model.Class
	sessions   map[string]model.Session
	students   map[string]model.Student
	attendance map[string]model.Attendance
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		teachers:   make(map[string]model.Teacher),
		classes:    make(map[string]model.Class),
		sessions:   make(map[string]model.Session),
		students:   make(map[string]model.Student),
		attendance: make(map[string]model.Attendance),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func attendanceKey(sessionID, studentID string) string { return sessionID + "#" + studentID }

// -------- Teachers --------

func (s *Store) CreateTeacher(_ context.Context, t *model.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.teachers {
		if strings.EqualFold(existing.Email, t.Email) {
			return repository.ErrDuplicate
		}
	}
	if _, ok := s.teachers[t.ID]; ok {
		return repository.ErrDuplicate
	}
	s.teachers[t.ID] = *t
	return nil
}

func (s *Store) GetTeacher(_ context.Context, id string) (*model.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teachers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *Store) GetTeacherByEmail(_ context.Context, email string) (*model.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teachers {
		if strings.EqualFold(t.Email, email) {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetTeacherByVerificationToken(_ context.Context, token string) (*model.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return nil, repository.ErrNotFound
	}
	for _, t := range s.teachers {
		if t.VerificationToken == token {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UpdateTeacher(_ context.Context, t *model.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[t.ID]; !ok {
		return repository.ErrNotFound
	}
	s.teachers[t.ID] = *t
	return nil
}

// -------- Classes --------

func (s *Store) CreateClass(_ context.Context, c *model.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[c.ID]; ok {
		return repository.ErrDuplicate
	}
	s.classes[c.ID] = *c
	return nil
}

func (s *Store) GetClass(_ context.Context, id string) (*model.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListClassesByTeacher(_ context.Context, teacherID string) ([]model.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Class
	for _, c := range s.classes {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateClass(_ context.Context, c *model.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[c.ID]; !ok {
		return repository.ErrNotFound
	}
	s.classes[c.ID] = *c
	return nil
}

// DeleteClass removes the class and everything hanging off it, like the SQL cascade.
func (s *Store) DeleteClass(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.classes, id)
	for sid, sess := range s.sessions {
		if sess.ClassID != id {
			continue
		}
		delete(s.sessions, sid)
		for k, a := range s.attendance {
			if a.SessionID == sid {
				delete(s.attendance, k)
			}
		}
	}
	for k, st := range s.students {
		if st.ClassID == id {
			delete(s.students, k)
		}
	}
	return nil
}

// -------- Sessions --------

func (s *Store) CreateSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[sess.ClassID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.sessions[sess.ID]; ok {
		return repository.ErrDuplicate
	}
	c.SessionCount++
	s.classes[c.ID] = c
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) ListSessionsByClass(_ context.Context, classID string) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.ClassID == classID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *Store) UpdateSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[sess.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// the counter is owned by RecordAttendance
	sess.AttendanceCount = existing.AttendanceCount
	s.sessions[sess.ID] = *sess
	return nil
}

// -------- Students --------

func (s *Store) CreateStudent(_ context.Context, st *model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.students {
		if existing.ClassID == st.ClassID && existing.RollNumber == st.RollNumber {
			return repository.ErrDuplicate
		}
	}
	s.students[st.ID] = *st
	return nil
}

func (s *Store) GetStudentByRoll(_ context.Context, classID, rollNumber string) (*model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if st.ClassID == classID && st.RollNumber == rollNumber {
			return &st, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListStudentsByClass(_ context.Context, classID string) ([]model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Student
	for _, st := range s.students {
		if st.ClassID == classID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RollNumber < out[j].RollNumber })
	return out, nil
}

func (s *Store) UpdateStudent(_ context.Context, st *model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.students[st.ID]
	if !ok {
		return repository.ErrNotFound
	}
	st.AttendanceCount = existing.AttendanceCount
	s.students[st.ID] = *st
	return nil
}

func (s *Store) DeleteStudent(_ context.Context, st *model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[st.ID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.students, st.ID)
	return nil
}

// -------- Attendance --------

func (s *Store) HasAttendance(_ context.Context, sessionID, studentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.attendance[attendanceKey(sessionID, studentID)]
	return ok, nil
}

func (s *Store) RecordAttendance(_ context.Context, a *model.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey(a.SessionID, a.StudentID)
	if _, ok := s.attendance[key]; ok {
		return repository.ErrDuplicate
	}
	sess, ok := s.sessions[a.SessionID]
	if !ok {
		return repository.ErrNotFound
	}
	st, ok := s.students[a.StudentID]
	if !ok {
		return repository.ErrNotFound
	}
	sess.AttendanceCount++
	st.AttendanceCount++
	s.sessions[sess.ID] = sess
	s.students[st.ID] = st
	s.attendance[key] = *a
	return nil
}

func (s *Store) ListAttendanceBySession(_ context.Context, sessionID string) ([]model.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Attendance
	for _, a := range s.attendance {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarkedAt.Before(out[j].MarkedAt) })
	return out, nil
}
