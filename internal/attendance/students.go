package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/model"
	"rollcall/internal/repository"
	"rollcall/internal/roll"
)

// ownedClass loads a class and checks that teacherID owns it.
func (s *Service) ownedClass(ctx context.Context, teacherID, classID string) (*model.Class, error) {
	c, err := s.store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("load class: %w", err)
	}
	if c.TeacherID != teacherID {
		return nil, ErrAccessDenied
	}
	return c, nil
}

// RegisterStudent adds a student ahead of their first submission. The face is indexed when they
// first submit.
func (s *Service) RegisterStudent(ctx context.Context, teacherID, classID, rollNumber, name string) (*model.Student, error) {
	c, err := s.ownedClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	rollNumber = strings.TrimSpace(rollNumber)
	if !roll.ValidFormat(rollNumber) {
		return nil, ErrInvalidRollFormat
	}
	rng, err := roll.ParseRange(c.RollRange)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", c.ID, err)
	}
	if !rng.Contains(rollNumber) {
		return nil, ErrRollNotInRange
	}
	now := s.now().UTC()
	st := &model.Student{
		ID:         uuid.NewString(),
		RollNumber: rollNumber,
		ClassID:    c.ID,
		Name:       strings.TrimSpace(name),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateStudent(ctx, st); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrStudentExists
		}
		return nil, fmt.Errorf("create student: %w", err)
	}
	return st, nil
}

func (s *Service) ListStudents(ctx context.Context, teacherID, classID string) ([]model.Student, error) {
	if _, err := s.ownedClass(ctx, teacherID, classID); err != nil {
		return nil, err
	}
	students, err := s.store.ListStudentsByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, nil
}
