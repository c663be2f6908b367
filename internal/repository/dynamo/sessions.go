package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rollcall/internal/model"
	"rollcall/internal/repository"
)

// CreateSession puts the session and bumps the class counter in one transaction.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return err
	}
	bump, err := counterUpdate(s.tables.Classes, "id", sess.ClassID, "sessionCount")
	if err != nil {
		return err
	}
	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{putNew(s.tables.Sessions, "id", item), bump},
	})
	return mapTxErr(err, repository.ErrDuplicate, repository.ErrNotFound)
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	if err := s.getItem(ctx, s.tables.Sessions, idKey(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) ListSessionsByClass(ctx context.Context, classID string) ([]model.Session, error) {
	var out []model.Session
	cond := expression.Key("classId").Equal(expression.Value(classID))
	if err := s.query(ctx, s.tables.Sessions, indexClass, cond, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSession writes the lifecycle fields; attendanceCount is owned by RecordAttendance.
func (s *Store) UpdateSession(ctx context.Context, sess *model.Session) error {
	upd := expression.Set(expression.Name("endTime"), expression.Value(sess.EndTime)).
		Set(expression.Name("isActive"), expression.Value(sess.IsActive)).
		Set(expression.Name("qrPayload"), expression.Value(sess.QRPayload))
	if sess.EndedAt != nil {
		upd = upd.Set(expression.Name("endedAt"), expression.Value(*sess.EndedAt))
	} else {
		upd = upd.Remove(expression.Name("endedAt"))
	}
	return s.update(ctx, s.tables.Sessions, idKey(sess.ID), upd)
}
