package dynamo

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

type userItem struct {
	UserID         string       `dynamodbav:"userId"`
	Username       string       `dynamodbav:"username"`
	PasswordHash   string       `dynamodbav:"passwordHash"`
	Role           string       `dynamodbav:"role,omitempty"`
	Email          string       `dynamodbav:"email,omitempty"`
	Avatars        []avatarItem `dynamodbav:"avatars"`
	ActiveAvatarID string       `dynamodbav:"activeAvatarId,omitempty"`
	CreatedAt      string       `dynamodbav:"createdAt"`
	UpdatedAt      string       `dynamodbav:"updatedAt"`
	Version        int64        `dynamodbav:"version"`
}

type avatarItem struct {
	AvatarID   string `dynamodbav:"avatarId"`
	DataURL    string `dynamodbav:"dataUrl"`
	UploadedAt string `dynamodbav:"uploadedAt"`
}

type usernameItem struct {
	Username string `dynamodbav:"username"`
	UserID   string `dynamodbav:"userId"`
}

type postItem struct {
	PostID       string   `dynamodbav:"postId"`
	UserID       string   `dynamodbav:"userId"`
	Username     string   `dynamodbav:"username"`
	Title        string   `dynamodbav:"title"`
	Content      string   `dynamodbav:"content"`
	Tags         []string `dynamodbav:"tags"`
	PostAvatarID string   `dynamodbav:"postAvatarId,omitempty"`
	Status       string   `dynamodbav:"status"`
	CommentCount int      `dynamodbav:"commentCount"`
	CreatedAt    string   `dynamodbav:"createdAt"`
	UpdatedAt    string   `dynamodbav:"updatedAt"`
}

type commentItem struct {
	CommentID       string `dynamodbav:"commentId"`
	PostID          string `dynamodbav:"postId"`
	UserID          string `dynamodbav:"userId"`
	Username        string `dynamodbav:"username"`
	Content         string `dynamodbav:"content"`
	ParentCommentID string `dynamodbav:"parentCommentId,omitempty"`
	CommentAvatarID string `dynamodbav:"commentAvatarId,omitempty"`
	CreatedAt       string `dynamodbav:"createdAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toUserItem(u *domain.User) userItem {
	role, _ := u.Activation.Role()
	item := userItem{
		UserID:         u.UserID,
		Username:       u.Username,
		PasswordHash:   u.PasswordHash,
		Role:           string(role),
		Email:          u.Email,
		Avatars:        make([]avatarItem, 0, len(u.Avatars)),
		ActiveAvatarID: u.ActiveAvatarID,
		CreatedAt:      formatTime(u.CreatedAt),
		UpdatedAt:      formatTime(u.UpdatedAt),
	}
	for _, a := range u.Avatars {
		item.Avatars = append(item.Avatars, toAvatarItem(a))
	}
	return item
}

func toAvatarItem(a domain.Avatar) avatarItem {
	return avatarItem{AvatarID: a.AvatarID, DataURL: a.DataURL, UploadedAt: formatTime(a.UploadedAt)}
}

func (i userItem) toDomain() *domain.User {
	u := &domain.User{
		UserID:         i.UserID,
		Username:       i.Username,
		PasswordHash:   i.PasswordHash,
		Email:          i.Email,
		Avatars:        make([]domain.Avatar, 0, len(i.Avatars)),
		ActiveAvatarID: i.ActiveAvatarID,
		CreatedAt:      parseTime(i.CreatedAt),
		UpdatedAt:      parseTime(i.UpdatedAt),
	}
	if i.Role != "" {
		u.Activation = domain.Activated(domain.Role(i.Role))
	}
	for _, a := range i.Avatars {
		u.Avatars = append(u.Avatars, domain.Avatar{
			AvatarID:   a.AvatarID,
			DataURL:    a.DataURL,
			UploadedAt: parseTime(a.UploadedAt),
		})
	}
	return u
}

func (i userItem) avatarIndex(avatarID string) int {
	for idx, a := range i.Avatars {
		if a.AvatarID == avatarID {
			return idx
		}
	}
	return -1
}

func toPostItem(p *domain.Post) postItem {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postItem{
		PostID:       p.PostID,
		UserID:       p.UserID,
		Username:     p.Username,
		Title:        p.Title,
		Content:      p.Content,
		Tags:         tags,
		PostAvatarID: p.PostAvatarID,
		Status:       string(p.Status),
		CommentCount: p.CommentCount,
		CreatedAt:    formatTime(p.CreatedAt),
		UpdatedAt:    formatTime(p.UpdatedAt),
	}
}

func (i postItem) toDomain() domain.Post {
	return domain.Post{
		PostID:       i.PostID,
		UserID:       i.UserID,
		Username:     i.Username,
		Title:        i.Title,
		Content:      i.Content,
		Tags:         i.Tags,
		PostAvatarID: i.PostAvatarID,
		Status:       domain.PostStatus(i.Status),
		CommentCount: i.CommentCount,
		CreatedAt:    parseTime(i.CreatedAt),
		UpdatedAt:    parseTime(i.UpdatedAt),
	}
}

func toCommentItem(c *domain.Comment) commentItem {
	return commentItem{
		CommentID:       c.CommentID,
		PostID:          c.PostID,
		UserID:          c.UserID,
		Username:        c.Username,
		Content:         c.Content,
		ParentCommentID: c.ParentCommentID,
		CommentAvatarID: c.CommentAvatarID,
		CreatedAt:       formatTime(c.CreatedAt),
	}
}

func (i commentItem) toDomain() domain.Comment {
	return domain.Comment{
		CommentID:       i.CommentID,
		PostID:          i.PostID,
		UserID:          i.UserID,
		Username:        i.Username,
		Content:         i.Content,
		ParentCommentID: i.ParentCommentID,
		CommentAvatarID: i.CommentAvatarID,
		CreatedAt:       parseTime(i.CreatedAt),
	}
}

// encodeCursor turns a LastEvaluatedKey into an opaque string. All key
// attributes used by these tables are strings.
func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	var flat map[string]string
	if err := attributevalue.UnmarshalMap(key, &flat); err != nil {
		return "", err
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, repository.ErrInvalidCursor
	}
	var flat map[string]string
	if err := json.Unmarshal(b, &flat); err != nil || len(flat) == 0 {
		return nil, repository.ErrInvalidCursor
	}
	key, err := attributevalue.MarshalMap(flat)
	if err != nil {
		return nil, repository.ErrInvalidCursor
	}
	return key, nil
}
