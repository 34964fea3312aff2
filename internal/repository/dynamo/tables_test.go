package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableClient struct {
	Client

	tables  map[string]bool
	created []*dynamodb.CreateTableInput
}

func (c *tableClient) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	name := aws.ToString(in.TableName)
	if !c.tables[name] {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func (c *tableClient) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	c.created = append(c.created, in)
	c.tables[aws.ToString(in.TableName)] = true
	return &dynamodb.CreateTableOutput{}, nil
}

func TestInitRequiresTablesWithoutProvisioning(t *testing.T) {
	tc := &tableClient{tables: map[string]bool{}}
	err := New(tc, DefaultTables(), false).Users().Init(context.Background())
	assert.ErrorContains(t, err, "CMS-Users does not exist")
	assert.Empty(t, tc.created)
}

func TestInitCreatesMissingTables(t *testing.T) {
	tc := &tableClient{tables: map[string]bool{"CMS-Users": true}}
	store := New(tc, DefaultTables(), true)

	require.NoError(t, store.Users().Init(context.Background()))
	require.Len(t, tc.created, 1)
	assert.Equal(t, "CMS-Usernames", aws.ToString(tc.created[0].TableName))

	require.NoError(t, store.Comments().Init(context.Background()))
	require.Len(t, tc.created, 2)
	comments := tc.created[1]
	assert.Equal(t, "CMS-Comments", aws.ToString(comments.TableName))
	require.Len(t, comments.GlobalSecondaryIndexes, 1)
	assert.Equal(t, postIDIndex, aws.ToString(comments.GlobalSecondaryIndexes[0].IndexName))

	// a second Init is a no-op
	require.NoError(t, store.Comments().Init(context.Background()))
	assert.Len(t, tc.created, 2)
}
