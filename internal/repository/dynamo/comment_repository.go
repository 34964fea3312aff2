package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

type CommentRepository struct {
	store *Store
}

func (r *CommentRepository) Init(ctx context.Context) error {
	return r.store.ensureTables(ctx, r.store.commentsTableInput())
}

// Create writes the comment and increments the post's counter in one
// transaction. A missing post cancels the transaction.
func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	item, err := attributevalue.MarshalMap(toCommentItem(comment))
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}

	_, err = r.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(r.store.tables.Posts),
				Key:                 stringKey("postId", comment.PostID),
				UpdateExpression:    aws.String("ADD commentCount :one"),
				ConditionExpression: aws.String("attribute_exists(postId)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":one": &types.AttributeValueMemberN{Value: "1"},
				},
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.store.tables.Comments),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(commentId)"),
			}},
		},
	})
	if err != nil {
		if cancelledAt(err, 0) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (r *CommentRepository) Get(ctx context.Context, postID, commentID string) (*domain.Comment, error) {
	out, err := r.store.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.store.tables.Comments),
		Key:       stringKey("commentId", commentID),
	})
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, repository.ErrNotFound
	}
	var item commentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal comment: %w", err)
	}
	if item.PostID != postID {
		return nil, repository.ErrNotFound
	}
	comment := item.toDomain()
	return &comment, nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string, limit int, cursor string) ([]domain.Comment, string, error) {
	start, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	out, err := r.store.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.store.tables.Comments),
		IndexName:              aws.String(postIDIndex),
		KeyConditionExpression: aws.String("postId = :p"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: postID},
		},
		ScanIndexForward:  aws.Bool(true),
		Limit:             aws.Int32(int32(limit)),
		ExclusiveStartKey: start,
	})
	if err != nil {
		return nil, "", fmt.Errorf("query comments: %w", err)
	}

	var items []commentItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal comments: %w", err)
	}
	comments := make([]domain.Comment, 0, len(items))
	for _, item := range items {
		comments = append(comments, item.toDomain())
	}

	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", fmt.Errorf("encode comments cursor: %w", err)
	}
	return comments, next, nil
}

// Delete removes the comment and decrements the post's counter in one transaction.
func (r *CommentRepository) Delete(ctx context.Context, postID, commentID string) error {
	_, err := r.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.store.tables.Comments),
				Key:                 stringKey("commentId", commentID),
				ConditionExpression: aws.String("postId = :p"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":p": &types.AttributeValueMemberS{Value: postID},
				},
			}},
			{Update: &types.Update{
				TableName:           aws.String(r.store.tables.Posts),
				Key:                 stringKey("postId", postID),
				UpdateExpression:    aws.String("SET commentCount = commentCount - :one"),
				ConditionExpression: aws.String("attribute_exists(postId) AND commentCount > :zero"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":one":  &types.AttributeValueMemberN{Value: "1"},
					":zero": &types.AttributeValueMemberN{Value: "0"},
				},
			}},
		},
	})
	if err == nil {
		return nil
	}
	if cancelledAt(err, 0) {
		return repository.ErrNotFound
	}
	if cancelledAt(err, 1) {
		// counter already at zero or post gone; still drop the comment
		_, err = r.store.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:           aws.String(r.store.tables.Comments),
			Key:                 stringKey("commentId", commentID),
			ConditionExpression: aws.String("postId = :p"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":p": &types.AttributeValueMemberS{Value: postID},
			},
		})
		if err == nil {
			return nil
		}
		if isConditionFailed(err) {
			return repository.ErrNotFound
		}
	}
	return fmt.Errorf("delete comment: %w", err)
}
