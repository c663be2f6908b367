package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"rollcall/internal/model"
	"rollcall/internal/repository"
)

func (s *Store) CreateClass(ctx context.Context, c *model.Class) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Classes),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	return mapErr(err, repository.ErrDuplicate)
}

func (s *Store) GetClass(ctx context.Context, id string) (*model.Class, error) {
	var c model.Class
	if err := s.getItem(ctx, s.tables.Classes, idKey(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListClassesByTeacher(ctx context.Context, teacherID string) ([]model.Class, error) {
	var out []model.Class
	cond := expression.Key("teacherId").Equal(expression.Value(teacherID))
	if err := s.query(ctx, s.tables.Classes, indexTeacher, cond, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateClass(ctx context.Context, c *model.Class) error {
	c.UpdatedAt = time.Now().UTC()
	upd := expression.Set(expression.Name("subject"), expression.Value(c.Subject)).
		Set(expression.Name("rollRange"), expression.Value(c.RollRange)).
		Set(expression.Name("updatedAt"), expression.Value(c.UpdatedAt))
	return s.update(ctx, s.tables.Classes, idKey(c.ID), upd)
}

// DeleteClass removes the class with its sessions, their attendance, and its students.
func (s *Store) DeleteClass(ctx context.Context, id string) error {
	if _, err := s.GetClass(ctx, id); err != nil {
		return err
	}
	sessions, err := s.ListSessionsByClass(ctx, id)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		records, err := s.ListAttendanceBySession(ctx, sess.ID)
		if err != nil {
			return err
		}
		for _, a := range records {
			if err := s.delete(ctx, s.tables.Attendance, key("pk", attendanceKey(a.SessionID, a.StudentID))); err != nil {
				return err
			}
		}
		if err := s.delete(ctx, s.tables.Sessions, idKey(sess.ID)); err != nil {
			return err
		}
	}
	students, err := s.ListStudentsByClass(ctx, id)
	if err != nil {
		return err
	}
	for _, st := range students {
		if err := s.delete(ctx, s.tables.Students, idKey(rollMarker(st.ClassID, st.RollNumber))); err != nil {
			return err
		}
		if err := s.delete(ctx, s.tables.Students, idKey(st.ID)); err != nil {
			return err
		}
	}
	return s.delete(ctx, s.tables.Classes, idKey(id))
}
