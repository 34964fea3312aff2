package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

type UserRepository struct {
	store *Store
}

func (r *UserRepository) Init(ctx context.Context) error {
	return r.store.ensureTables(ctx, r.store.usersTableInput(), r.store.usernamesTableInput())
}

// Create claims the username and writes the user in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	item, err := attributevalue.MarshalMap(toUserItem(user))
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	claim, err := attributevalue.MarshalMap(usernameItem{Username: user.Username, UserID: user.UserID})
	if err != nil {
		return fmt.Errorf("marshal username claim: %w", err)
	}

	_, err = r.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.store.tables.Usernames),
				Item:                claim,
				ConditionExpression: aws.String("attribute_not_exists(username)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.store.tables.Users),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(userId)"),
			}},
		},
	})
	if err != nil {
		if cancelledAt(err, 0) {
			return repository.ErrUsernameTaken
		}
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	item, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return item.toDomain(), nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	out, err := r.store.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.store.tables.Users),
		IndexName:              aws.String(usernameIndex),
		KeyConditionExpression: aws.String("username = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: username},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query username index: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, repository.ErrNotFound
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return item.toDomain(), nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	paginator := dynamodb.NewScanPaginator(r.store.client, &dynamodb.ScanInput{
		TableName: aws.String(r.store.tables.Users),
	})

	var users []domain.User
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		var items []userItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		for _, item := range items {
			users = append(users, *item.toDomain())
		}
	}
	return users, nil
}

func (r *UserRepository) SetActivation(ctx context.Context, userID string, activation domain.Activation) error {
	values := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberS{Value: formatTime(time.Now())},
		":one": &types.AttributeValueMemberN{Value: "1"},
	}
	expr := "REMOVE #role SET updatedAt = :now ADD #v :one"
	if role, ok := activation.Role(); ok {
		expr = "SET #role = :role, updatedAt = :now ADD #v :one"
		values[":role"] = &types.AttributeValueMemberS{Value: string(role)}
	}
	return r.updateExisting(ctx, userID, expr, map[string]string{"#role": "role", "#v": "version"}, values)
}

func (r *UserRepository) SetEmail(ctx context.Context, userID, email string) error {
	values := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberS{Value: formatTime(time.Now())},
		":one": &types.AttributeValueMemberN{Value: "1"},
	}
	expr := "REMOVE #email SET updatedAt = :now ADD #v :one"
	if email != "" {
		expr = "SET #email = :email, updatedAt = :now ADD #v :one"
		values[":email"] = &types.AttributeValueMemberS{Value: email}
	}
	return r.updateExisting(ctx, userID, expr, map[string]string{"#email": "email", "#v": "version"}, values)
}

func (r *UserRepository) SwapPasswordHash(ctx context.Context, userID, oldHash, newHash string) error {
	_, err := r.store.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.store.tables.Users),
		Key:                      stringKey("userId", userID),
		UpdateExpression:         aws.String("SET passwordHash = :new, updatedAt = :now ADD #v :one"),
		ConditionExpression:      aws.String("attribute_exists(userId) AND passwordHash = :old"),
		ExpressionAttributeNames: map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberS{Value: newHash},
			":old": &types.AttributeValueMemberS{Value: oldHash},
			":now": &types.AttributeValueMemberS{Value: formatTime(time.Now())},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}
	if ccf, ok := conditionFailure(err); ok {
		if len(ccf.Item) == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return fmt.Errorf("update password hash: %w", err)
}

// AppendAvatar appends and activates in a single conditional update so the
// size bound holds under concurrent uploads.
func (r *UserRepository) AppendAvatar(ctx context.Context, userID string, avatar domain.Avatar, max int) error {
	entry, err := attributevalue.Marshal([]avatarItem{toAvatarItem(avatar)})
	if err != nil {
		return fmt.Errorf("marshal avatar: %w", err)
	}

	_, err = r.store.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.store.tables.Users),
		Key:       stringKey("userId", userID),
		UpdateExpression: aws.String(
			"SET avatars = list_append(if_not_exists(avatars, :empty), :new), activeAvatarId = :id, updatedAt = :now ADD #v :one"),
		ConditionExpression: aws.String(
			"attribute_exists(userId) AND (attribute_not_exists(avatars) OR size(avatars) < :max)"),
		ExpressionAttributeNames: map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":new":   entry,
			":id":    &types.AttributeValueMemberS{Value: avatar.AvatarID},
			":now":   &types.AttributeValueMemberS{Value: formatTime(time.Now())},
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":max":   &types.AttributeValueMemberN{Value: strconv.Itoa(max)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}
	if ccf, ok := conditionFailure(err); ok {
		if len(ccf.Item) == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrAvatarLimit
	}
	return fmt.Errorf("append avatar: %w", err)
}

func (r *UserRepository) SetActiveAvatar(ctx context.Context, userID, avatarID string) error {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		item, err := r.load(ctx, userID)
		if err != nil {
			return err
		}
		if item.avatarIndex(avatarID) < 0 {
			return repository.ErrAvatarNotFound
		}

		err = r.versionedUpdate(ctx, item, "SET activeAvatarId = :id, updatedAt = :now ADD #v :one",
			map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: avatarID}})
		if err == nil {
			return nil
		}
		if !isConditionFailed(err) {
			return fmt.Errorf("set active avatar: %w", err)
		}
	}
	return repository.ErrConflict
}

func (r *UserRepository) RemoveAvatar(ctx context.Context, userID, avatarID string) (*domain.Avatar, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		item, err := r.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		idx := item.avatarIndex(avatarID)
		if idx < 0 {
			return nil, nil
		}
		if item.ActiveAvatarID == avatarID {
			return nil, repository.ErrActiveAvatar
		}

		// list indexes are positional, so the version check also pins idx
		err = r.versionedUpdate(ctx, item, fmt.Sprintf("REMOVE avatars[%d] SET updatedAt = :now ADD #v :one", idx), nil)
		if err == nil {
			removed := item.toDomain().Avatars[idx]
			return &removed, nil
		}
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("remove avatar: %w", err)
		}
	}
	return nil, repository.ErrConflict
}

func (r *UserRepository) load(ctx context.Context, userID string) (*userItem, error) {
	out, err := r.store.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.store.tables.Users),
		Key:            stringKey("userId", userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, repository.ErrNotFound
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &item, nil
}

// versionedUpdate applies expr only if the stored version still matches item.Version.
// Items written before versioning carry no version attribute and count as version 0.
func (r *UserRepository) versionedUpdate(ctx context.Context, item *userItem, expr string, values map[string]types.AttributeValue) error {
	all := map[string]types.AttributeValue{
		":now":  &types.AttributeValueMemberS{Value: formatTime(time.Now())},
		":one":  &types.AttributeValueMemberN{Value: "1"},
		":ver":  &types.AttributeValueMemberN{Value: strconv.FormatInt(item.Version, 10)},
		":zero": &types.AttributeValueMemberN{Value: "0"},
	}
	for k, v := range values {
		all[k] = v
	}
	_, err := r.store.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.store.tables.Users),
		Key:                       stringKey("userId", item.UserID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("(attribute_not_exists(#v) AND :ver = :zero) OR #v = :ver"),
		ExpressionAttributeNames:  map[string]string{"#v": "version"},
		ExpressionAttributeValues: all,
	})
	return err
}

func (r *UserRepository) updateExisting(ctx context.Context, userID, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	in := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.store.tables.Users),
		Key:                       stringKey("userId", userID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(userId)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if _, err := r.store.client.UpdateItem(ctx, in); err != nil {
		if isConditionFailed(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
