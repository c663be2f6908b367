package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rollcall/internal/model"
	"rollcall/internal/repository"
)

func (s *Store) HasAttendance(ctx context.Context, sessionID, studentID string) (bool, error) {
	res, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tables.Attendance),
		Key:                  key("pk", attendanceKey(sessionID, studentID)),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("pk"),
	})
	if err != nil {
		return false, fmt.Errorf("get attendance: %w", err)
	}
	return res.Item != nil, nil
}

// RecordAttendance writes the record keyed by session and student together with both counter
// increments. A second record for the pair cancels the transaction with ErrDuplicate.
func (s *Store) RecordAttendance(ctx context.Context, a *model.Attendance) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return err
	}
	item["pk"] = &types.AttributeValueMemberS{Value: attendanceKey(a.SessionID, a.StudentID)}

	bumpSession, err := counterUpdate(s.tables.Sessions, "id", a.SessionID, "attendanceCount")
	if err != nil {
		return err
	}
	bumpStudent, err := counterUpdate(s.tables.Students, "id", a.StudentID, "attendanceCount")
	if err != nil {
		return err
	}
	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{putNew(s.tables.Attendance, "pk", item), bumpSession, bumpStudent},
	})
	return mapTxErr(err, repository.ErrDuplicate, repository.ErrNotFound, repository.ErrNotFound)
}

func (s *Store) ListAttendanceBySession(ctx context.Context, sessionID string) ([]model.Attendance, error) {
	var out []model.Attendance
	cond := expression.Key("sessionId").Equal(expression.Value(sessionID))
	if err := s.query(ctx, s.tables.Attendance, indexSession, cond, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) delete(ctx context.Context, table string, k map[string]types.AttributeValue) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(table), Key: k})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}
