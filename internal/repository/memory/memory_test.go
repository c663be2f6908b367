package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rollcall/internal/model"
	"rollcall/internal/repository"
)

func seed(t *testing.T, s *Store) (model.Class, model.Session, model.Student) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	class := model.Class{ID: "c1", TeacherID: "t1", Subject: "Physics", RollRange: "2024179001-2024179060", CreatedAt: now}
	if err := s.CreateClass(ctx, &class); err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	sess := model.Session{ID: "s1", ClassID: "c1", TeacherID: "t1", StartTime: now, EndTime: now.Add(time.Hour), IsActive: true}
	if err := s.CreateSession(ctx, &sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	st := model.Student{ID: "st1", ClassID: "c1", RollNumber: "2024179001"}
	if err := s.CreateStudent(ctx, &st); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	return class, sess, st
}

func TestCreateSessionBumpsClassCounter(t *testing.T) {
	s := New()
	seed(t, s)

	c, err := s.GetClass(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.SessionCount != 1 {
		t.Errorf("SessionCount = %d, want 1", c.SessionCount)
	}

	orphan := model.Session{ID: "s2", ClassID: "missing"}
	if err := s.CreateSession(context.Background(), &orphan); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("CreateSession for missing class error = %v, want ErrNotFound", err)
	}
}

func TestRecordAttendanceIsUniqueUnderConcurrency(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, dup := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RecordAttendance(ctx, &model.Attendance{ID: "a", SessionID: "s1", StudentID: "st1", MarkedAt: time.Now()})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrDuplicate):
				dup++
			default:
				t.Errorf("RecordAttendance: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || dup != 19 {
		t.Fatalf("ok=%d dup=%d, want 1 and 19", ok, dup)
	}

	sess, _ := s.GetSession(ctx, "s1")
	st, _ := s.GetStudentByRoll(ctx, "c1", "2024179001")
	if sess.AttendanceCount != 1 || st.AttendanceCount != 1 {
		t.Errorf("counters session=%d student=%d, want 1 and 1", sess.AttendanceCount, st.AttendanceCount)
	}
	has, _ := s.HasAttendance(ctx, "s1", "st1")
	if !has {
		t.Error("HasAttendance = false after record")
	}
}

func TestStudentRollIsUniquePerClass(t *testing.T) {
	s := New()
	seed(t, s)

	dup := model.Student{ID: "st2", ClassID: "c1", RollNumber: "2024179001"}
	if err := s.CreateStudent(context.Background(), &dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("CreateStudent duplicate roll error = %v, want ErrDuplicate", err)
	}
	other := model.Student{ID: "st3", ClassID: "c2", RollNumber: "2024179001"}
	if err := s.CreateStudent(context.Background(), &other); err != nil {
		t.Errorf("CreateStudent in other class error = %v, want nil", err)
	}
}

func TestDeleteClassCascades(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	if err := s.RecordAttendance(ctx, &model.Attendance{ID: "a1", SessionID: "s1", StudentID: "st1"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteClass(ctx, "c1"); err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}
	if _, err := s.GetSession(ctx, "s1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("session survived class delete: %v", err)
	}
	if recs, _ := s.ListAttendanceBySession(ctx, "s1"); len(recs) != 0 {
		t.Errorf("attendance survived class delete: %d", len(recs))
	}
	if _, err := s.GetStudentByRoll(ctx, "c1", "2024179001"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("student survived class delete: %v", err)
	}
}

func TestTeacherEmailIsCaseInsensitiveUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateTeacher(ctx, &model.Teacher{ID: "t1", Email: "ada@school.edu"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateTeacher(ctx, &model.Teacher{ID: "t2", Email: "ADA@school.edu"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("CreateTeacher duplicate email error = %v, want ErrDuplicate", err)
	}
	got, err := s.GetTeacherByEmail(ctx, "Ada@School.edu")
	if err != nil || got.ID != "t1" {
		t.Errorf("GetTeacherByEmail = %v, %v", got, err)
	}
}

func TestDeleteStudentFreesRoll(t *testing.T) {
	s := New()
	_, _, st := seed(t, s)
	ctx := context.Background()

	if err := s.DeleteStudent(ctx, &st); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if err := s.DeleteStudent(ctx, &st); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("second DeleteStudent error = %v, want ErrNotFound", err)
	}
	again := model.Student{ID: "st9", ClassID: "c1", RollNumber: st.RollNumber}
	if err := s.CreateStudent(ctx, &again); err != nil {
		t.Errorf("CreateStudent on freed roll: %v", err)
	}
}
