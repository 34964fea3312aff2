// Package dynamo implements the repositories on top of Amazon DynamoDB.
//
// Username uniqueness is enforced with a transactional write into a
// separate usernames table; avatar appends use a conditional size check;
// read-modify-write updates are guarded by a numeric version attribute.
package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cms-backend/internal/repository"
)

// Client is the subset of the DynamoDB API used by the repositories.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Tables names the DynamoDB tables backing each repository.
type Tables struct {
	Users     string
	Usernames string
	Posts     string
	Comments  string
}

func DefaultTables() Tables {
	return Tables{
		Users:     "CMS-Users",
		Usernames: "CMS-Usernames",
		Posts:     "CMS-Posts",
		Comments:  "CMS-Comments",
	}
}

const (
	usernameIndex = "username-index"
	postIDIndex   = "postId-index"

	// maxWriteAttempts bounds optimistic-concurrency retries.
	maxWriteAttempts = 3
)

// Store hands out repositories sharing one client.
type Store struct {
	client       Client
	tables       Tables
	createTables bool
}

// New returns a Store. When createTables is set each repository's Init
// provisions its tables; otherwise Init only checks that they exist.
func New(client Client, tables Tables, createTables bool) *Store {
	return &Store{client: client, tables: tables, createTables: createTables}
}

func (s *Store) Users() repository.UserRepository {
	return &UserRepository{store: s}
}

func (s *Store) Posts() repository.PostRepository {
	return &PostRepository{store: s}
}

func (s *Store) Comments() repository.CommentRepository {
	return &CommentRepository{store: s}
}

func isConditionFailed(err error) bool {
	_, ok := conditionFailure(err)
	return ok
}

func conditionFailure(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}

// cancelledAt reports whether a transaction was cancelled because the
// condition of the item at index failed.
func cancelledAt(err error, index int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	if index >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[index].Code) == "ConditionalCheckFailed"
}

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{name: &types.AttributeValueMemberS{Value: value}}
}
