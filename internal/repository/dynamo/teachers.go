package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rollcall/internal/model"
	"rollcall/internal/repository"
)

// emailItem reserves an email for one teacher.
type emailItem struct {
	ID        string `dynamodbav:"id"`
	TeacherID string `dynamodbav:"ownerId"`
}

func (s *Store) CreateTeacher(ctx context.Context, t *model.Teacher) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return err
	}
	marker, err := attributevalue.MarshalMap(emailItem{ID: emailMarker(t.Email), TeacherID: t.ID})
	if err != nil {
		return err
	}
	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			putNew(s.tables.Teachers, "id", item),
			putNew(s.tables.Teachers, "id", marker),
		},
	})
	return mapTxErr(err, repository.ErrDuplicate, repository.ErrDuplicate)
}

func (s *Store) GetTeacher(ctx context.Context, id string) (*model.Teacher, error) {
	var t model.Teacher
	if err := s.getItem(ctx, s.tables.Teachers, idKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetTeacherByEmail(ctx context.Context, email string) (*model.Teacher, error) {
	var marker emailItem
	if err := s.getItem(ctx, s.tables.Teachers, idKey(emailMarker(email)), &marker); err != nil {
		return nil, err
	}
	return s.GetTeacher(ctx, marker.TeacherID)
}

// GetTeacherByVerificationToken scans for the token. Verification is rare enough that no index is
// kept for it.
func (s *Store) GetTeacherByVerificationToken(ctx context.Context, token string) (*model.Teacher, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("verificationToken").Equal(expression.Value(token))).
		Build()
	if err != nil {
		return nil, err
	}
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tables.Teachers),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan teachers: %w", err)
		}
		if len(page.Items) > 0 {
			var t model.Teacher
			if err := attributevalue.UnmarshalMap(page.Items[0], &t); err != nil {
				return nil, err
			}
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

// UpdateTeacher replaces the teacher item. Email is immutable, so the marker is untouched.
func (s *Store) UpdateTeacher(ctx context.Context, t *model.Teacher) error {
	t.UpdatedAt = time.Now().UTC()
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Teachers),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	return mapErr(err, repository.ErrNotFound)
}
