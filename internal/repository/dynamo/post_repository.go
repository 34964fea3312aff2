package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

// batchWriteLimit is the DynamoDB cap on requests per BatchWriteItem call.
const batchWriteLimit = 25

type PostRepository struct {
	store *Store
}

func (r *PostRepository) Init(ctx context.Context) error {
	return r.store.ensureTables(ctx, r.store.postsTableInput())
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	item, err := attributevalue.MarshalMap(toPostItem(post))
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	_, err = r.store.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.store.tables.Posts),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(postId)"),
	})
	if err != nil {
		return fmt.Errorf("put post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, postID string) (*domain.Post, error) {
	out, err := r.store.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.store.tables.Posts),
		Key:       stringKey("postId", postID),
	})
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, repository.ErrNotFound
	}
	var item postItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal post: %w", err)
	}
	post := item.toDomain()
	return &post, nil
}

// List scans the posts table. Ordering is newest first within a page only.
func (r *PostRepository) List(ctx context.Context, limit int, cursor string) ([]domain.Post, string, error) {
	start, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	out, err := r.store.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(r.store.tables.Posts),
		Limit:             aws.Int32(int32(limit)),
		ExclusiveStartKey: start,
	})
	if err != nil {
		return nil, "", fmt.Errorf("scan posts: %w", err)
	}

	var items []postItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal posts: %w", err)
	}
	posts := make([]domain.Post, 0, len(items))
	for _, item := range items {
		posts = append(posts, item.toDomain())
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", fmt.Errorf("encode posts cursor: %w", err)
	}
	return posts, next, nil
}

func (r *PostRepository) Update(ctx context.Context, post *domain.Post) error {
	tags, err := attributevalue.Marshal(toPostItem(post).Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = r.store.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.store.tables.Posts),
		Key:                 stringKey("postId", post.PostID),
		UpdateExpression:    aws.String("SET #title = :title, #content = :content, #tags = :tags, #status = :status, updatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(postId)"),
		ExpressionAttributeNames: map[string]string{
			"#title":   "title",
			"#content": "content",
			"#tags":    "tags",
			"#status":  "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":title":   &types.AttributeValueMemberS{Value: post.Title},
			":content": &types.AttributeValueMemberS{Value: post.Content},
			":tags":    tags,
			":status":  &types.AttributeValueMemberS{Value: string(post.Status)},
			":now":     &types.AttributeValueMemberS{Value: formatTime(post.UpdatedAt)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// Delete removes the post's comments in batches and then the post itself.
func (r *PostRepository) Delete(ctx context.Context, postID string) error {
	if err := r.deleteComments(ctx, postID); err != nil {
		return err
	}
	_, err := r.store.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.store.tables.Posts),
		Key:                 stringKey("postId", postID),
		ConditionExpression: aws.String("attribute_exists(postId)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (r *PostRepository) deleteComments(ctx context.Context, postID string) error {
	paginator := dynamodb.NewQueryPaginator(r.store.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.store.tables.Comments),
		IndexName:              aws.String(postIDIndex),
		KeyConditionExpression: aws.String("postId = :p"),
		ProjectionExpression:   aws.String("commentId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: postID},
		},
	})

	var requests []types.WriteRequest
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("query post comments: %w", err)
		}
		for _, item := range page.Items {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{"commentId": item["commentId"]}},
			})
		}
	}

	for len(requests) > 0 {
		n := min(len(requests), batchWriteLimit)
		if err := r.batchDelete(ctx, requests[:n]); err != nil {
			return err
		}
		requests = requests[n:]
	}
	return nil
}

func (r *PostRepository) batchDelete(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.store.tables.Comments: requests}
	for attempt := 0; attempt < maxWriteAttempts && len(pending) > 0; attempt++ {
		out, err := r.store.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("delete post comments: %w", err)
		}
		pending = out.UnprocessedItems
	}
	if len(pending) > 0 {
		return fmt.Errorf("delete post comments: %d requests unprocessed", len(pending[r.store.tables.Comments]))
	}
	return nil
}
