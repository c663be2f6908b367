// Package dynamo implements repository.Store on DynamoDB.
//
// Each entity lives in its own table keyed by "id" (attendance by "pk" = sessionId#studentId).
// Uniqueness of teacher email and of (class, roll) is kept with marker items written in the same
// transaction as the entity.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rollcall/internal/repository"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

const (
	teacherEmailMarker = "email#"
	studentRollMarker  = "roll#"

	indexTeacher   = "teacherId-index"
	indexClass     = "classId-index"
	indexClassRoll = "classId-rollNumber-index"
	indexSession   = "sessionId-index"
)

// Tables names the five tables.
type Tables struct {
	Teachers   string
	Classes    string
	Sessions   string
	Students   string
	Attendance string
}

// TablesWithPrefix derives table names from a prefix such as "rollcall-".
func TablesWithPrefix(prefix string) Tables {
	return Tables{
		Teachers:   prefix + "teachers",
		Classes:    prefix + "classes",
		Sessions:   prefix + "sessions",
		Students:   prefix + "students",
		Attendance: prefix + "attendance",
	}
}

// Store persists rollcall data in DynamoDB.
type Store struct {
	api    API
	tables Tables
}

var _ repository.Store = (*Store)(nil)

// New creates a store.
func New(api API, tables Tables) *Store {
	return &Store{api: api, tables: tables}
}

// Ping describes the teachers table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tables.Teachers)})
	return err
}

func key(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{name: &types.AttributeValueMemberS{Value: value}}
}

func idKey(id string) map[string]types.AttributeValue { return key("id", id) }

func attendanceKey(sessionID, studentID string) string { return sessionID + "#" + studentID }

func emailMarker(email string) string { return teacherEmailMarker + strings.ToLower(email) }

func rollMarker(classID, roll string) string { return studentRollMarker + classID + "#" + roll }

// getItem loads one item into out, returning ErrNotFound when absent.
func (s *Store) getItem(ctx context.Context, table string, k map[string]types.AttributeValue, out any) error {
	res, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(table), Key: k, ConsistentRead: aws.Bool(true)})
	if err != nil {
		return fmt.Errorf("get %s: %w", table, err)
	}
	if res.Item == nil {
		return repository.ErrNotFound
	}
	return attributevalue.UnmarshalMap(res.Item, out)
}

// query pages through an index query and unmarshals every item into out (a slice pointer).
func (s *Store) query(ctx context.Context, table, index string, cond expression.KeyConditionBuilder, forward bool, out any) error {
	expr, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	if err != nil {
		return err
	}
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(forward),
	}
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(s.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("query %s/%s: %w", table, index, err)
		}
		items = append(items, page.Items...)
	}
	return attributevalue.UnmarshalListOfMaps(items, out)
}

// update applies an update expression to an existing item.
func (s *Store) update(ctx context.Context, table string, k map[string]types.AttributeValue, upd expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().
		WithUpdate(upd).
		WithCondition(expression.AttributeExists(expression.Name(firstKeyName(k)))).
		Build()
	if err != nil {
		return err
	}
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       k,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return mapErr(err, repository.ErrNotFound)
}

func firstKeyName(k map[string]types.AttributeValue) string {
	for name := range k {
		return name
	}
	return "id"
}

// counterUpdate increments a numeric attribute on an item that must exist.
func counterUpdate(table, keyName, keyValue, attr string) (types.TransactWriteItem, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name(attr), expression.Name(attr).Plus(expression.Value(1)))).
		WithCondition(expression.AttributeExists(expression.Name(keyName))).
		Build()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(table),
		Key:                       key(keyName, keyValue),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}}, nil
}

// putNew is a transactional put that fails when the key is taken.
func putNew(table, keyName string, item map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": keyName},
	}}
}

// mapErr turns a failed condition into onCondition.
func mapErr(err, onCondition error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return onCondition
	}
	return err
}

// mapTxErr inspects cancellation reasons; reasons[i] pairs with onCondition[i].
func mapTxErr(err error, onCondition ...error) error {
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return err
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" && i < len(onCondition) {
			return onCondition[i]
		}
	}
	return err
}
