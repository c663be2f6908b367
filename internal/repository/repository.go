// Package repository defines the persistence contracts shared by the postgres, dynamo and memory
// backends.
package repository

import (
	"context"
	"errors"

	"rollcall/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Teachers persists teacher accounts. Email is unique.
type Teachers interface {
	CreateTeacher(ctx context.Context, t *model.Teacher) error
	GetTeacher(ctx context.Context, id string) (*model.Teacher, error)
	GetTeacherByEmail(ctx context.Context, email string) (*model.Teacher, error)
	GetTeacherByVerificationToken(ctx context.Context, token string) (*model.Teacher, error)
	UpdateTeacher(ctx context.Context, t *model.Teacher) error
}

// Classes persists classes.
type Classes interface {
	CreateClass(ctx context.Context, c *model.Class) error
	GetClass(ctx context.Context, id string) (*model.Class, error)
	ListClassesByTeacher(ctx context.Context, teacherID string) ([]model.Class, error)
	UpdateClass(ctx context.Context, c *model.Class) error
	DeleteClass(ctx context.Context, id string) error
}

// Sessions persists attendance sessions.
type Sessions interface {
	// CreateSession stores s and increments the owning class's session counter atomically.
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessionsByClass(ctx context.Context, classID string) ([]model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error
}

// Students persists students. (ClassID, RollNumber) is unique.
type Students interface {
	CreateStudent(ctx context.Context, s *model.Student) error
	GetStudentByRoll(ctx context.Context, classID, rollNumber string) (*model.Student, error)
	ListStudentsByClass(ctx context.Context, classID string) ([]model.Student, error)
	UpdateStudent(ctx context.Context, s *model.Student) error
	// DeleteStudent removes a student and frees its roll number in the class.
	DeleteStudent(ctx context.Context, s *model.Student) error
}

// Attendance persists attendance records. (SessionID, StudentID) is unique.
type Attendance interface {
	HasAttendance(ctx context.Context, sessionID, studentID string) (bool, error)
	// RecordAttendance stores a and increments the session and student counters atomically.
	// It returns ErrDuplicate when the student is already marked for the session.
	RecordAttendance(ctx context.Context, a *model.Attendance) error
	ListAttendanceBySession(ctx context.Context, sessionID string) ([]model.Attendance, error)
}

// Store bundles every repository one backend provides.
type Store interface {
	Teachers
	Classes
	Sessions
	Students
	Attendance
	Ping(ctx context.Context) error
}
