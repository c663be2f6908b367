package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rollcall/internal/model"
	"rollcall/internal/repository"
)

// rollItem reserves a roll number within a class. It carries no classId so it stays out of the
// class index.
type rollItem struct {
	ID        string `dynamodbav:"id"`
	StudentID string `dynamodbav:"ownerId"`
}

func (s *Store) CreateStudent(ctx context.Context, st *model.Student) error {
	item, err := attributevalue.MarshalMap(st)
	if err != nil {
		return err
	}
	marker, err := attributevalue.MarshalMap(rollItem{ID: rollMarker(st.ClassID, st.RollNumber), StudentID: st.ID})
	if err != nil {
		return err
	}
	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			putNew(s.tables.Students, "id", item),
			putNew(s.tables.Students, "id", marker),
		},
	})
	return mapTxErr(err, repository.ErrDuplicate, repository.ErrDuplicate)
}

// GetStudentByRoll resolves the roll marker, then loads the student consistently.
func (s *Store) GetStudentByRoll(ctx context.Context, classID, rollNumber string) (*model.Student, error) {
	var marker rollItem
	if err := s.getItem(ctx, s.tables.Students, idKey(rollMarker(classID, rollNumber)), &marker); err != nil {
		return nil, err
	}
	var st model.Student
	if err := s.getItem(ctx, s.tables.Students, idKey(marker.StudentID), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) ListStudentsByClass(ctx context.Context, classID string) ([]model.Student, error) {
	var out []model.Student
	cond := expression.Key("classId").Equal(expression.Value(classID))
	if err := s.query(ctx, s.tables.Students, indexClassRoll, cond, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateStudent(ctx context.Context, st *model.Student) error {
	st.UpdatedAt = time.Now().UTC()
	upd := expression.Set(expression.Name("name"), expression.Value(st.Name)).
		Set(expression.Name("faceId"), expression.Value(st.FaceID)).
		Set(expression.Name("updatedAt"), expression.Value(st.UpdatedAt))
	return s.update(ctx, s.tables.Students, idKey(st.ID), upd)
}

// DeleteStudent drops the student and its roll marker together. The marker is only removed while it
// still points at this student.
func (s *Store) DeleteStudent(ctx context.Context, st *model.Student) error {
	owner, err := expression.NewBuilder().
		WithCondition(expression.Name("ownerId").Equal(expression.Value(st.ID))).
		Build()
	if err != nil {
		return err
	}
	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                 aws.String(s.tables.Students),
				Key:                 idKey(st.ID),
				ConditionExpression: aws.String("attribute_exists(id)"),
			}},
			{Delete: &types.Delete{
				TableName:                 aws.String(s.tables.Students),
				Key:                       idKey(rollMarker(st.ClassID, st.RollNumber)),
				ConditionExpression:       owner.Condition(),
				ExpressionAttributeNames:  owner.Names(),
				ExpressionAttributeValues: owner.Values(),
			}},
		},
	})
	return mapTxErr(err, repository.ErrNotFound, repository.ErrNotFound)
}
