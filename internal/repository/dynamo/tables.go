package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type tableSpec struct {
	name    string
	hashKey string
	indexes []types.GlobalSecondaryIndex
	attrs   []string
}

func gsi(name, hash, rng string) types.GlobalSecondaryIndex {
	schema := []types.KeySchemaElement{{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash}}
	if rng != "" {
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(rng), KeyType: types.KeyTypeRange})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(name),
		KeySchema:  schema,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func (s *Store) tableSpecs() []tableSpec {
	return []tableSpec{
		{name: s.tables.Teachers, hashKey: "id", attrs: []string{"id"}},
		{name: s.tables.Classes, hashKey: "id", attrs: []string{"id", "teacherId", "createdAt"},
			indexes: []types.GlobalSecondaryIndex{gsi(indexTeacher, "teacherId", "createdAt")}},
		{name: s.tables.Sessions, hashKey: "id", attrs: []string{"id", "classId", "startTime"},
			indexes: []types.GlobalSecondaryIndex{gsi(indexClass, "classId", "startTime")}},
		{name: s.tables.Students, hashKey: "id", attrs: []string{"id", "classId", "rollNumber"},
			indexes: []types.GlobalSecondaryIndex{gsi(indexClassRoll, "classId", "rollNumber")}},
		{name: s.tables.Attendance, hashKey: "pk", attrs: []string{"pk", "sessionId", "markedAt"},
			indexes: []types.GlobalSecondaryIndex{gsi(indexSession, "sessionId", "markedAt")}},
	}
}

// EnsureTables creates any missing table with on-demand billing. Used against LocalStack and fresh
// accounts; existing tables are left alone.
func (s *Store) EnsureTables(ctx context.Context) error {
	for _, spec := range s.tableSpecs() {
		defs := make([]types.AttributeDefinition, 0, len(spec.attrs))
		for _, a := range spec.attrs {
			defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(a), AttributeType: types.ScalarAttributeTypeS})
		}
		in := &dynamodb.CreateTableInput{
			TableName:            aws.String(spec.name),
			AttributeDefinitions: defs,
			KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String(spec.hashKey), KeyType: types.KeyTypeHash}},
			BillingMode:          types.BillingModePayPerRequest,
		}
		if len(spec.indexes) > 0 {
			in.GlobalSecondaryIndexes = spec.indexes
		}
		if _, err := s.api.CreateTable(ctx, in); err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return fmt.Errorf("create table %s: %w", spec.name, err)
		}
	}
	return nil
}
