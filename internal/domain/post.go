package domain

import "time"

type PostStatus string

const (
	PostStatusPublished PostStatus = "published"
	PostStatusDraft     PostStatus = "draft"
)

// Post is authored content. UserID is set at creation and never changes.
type Post struct {
	PostID       string
	UserID       string
	Username     string
	Title        string
	Content      string
	Tags         []string
	PostAvatarID string
	Status       PostStatus
	CommentCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Comment belongs to a post and optionally replies to another comment of the same post.
type Comment struct {
	CommentID       string
	PostID          string
	UserID          string
	Username        string
	Content         string
	ParentCommentID string
	CommentAvatarID string
	CreatedAt       time.Time
}
