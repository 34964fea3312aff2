package repository

import (
	"context"

	"cms-backend/internal/domain"
)

// PostRepository exposes persistence operations for posts.
type PostRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, postID string) (*domain.Post, error)
	// List returns posts newest first. The returned cursor is empty on the last page.
	List(ctx context.Context, limit int, cursor string) ([]domain.Post, string, error)
	// Update stores the mutable fields (title, content, tags, status, updatedAt).
	Update(ctx context.Context, post *domain.Post) error
	// Delete removes the post together with its comments.
	Delete(ctx context.Context, postID string) error
}

// CommentRepository manages comments. Create and Delete keep the parent
// post's comment count in step within the same atomic operation.
type CommentRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, comment *domain.Comment) error
	Get(ctx context.Context, postID, commentID string) (*domain.Comment, error)
	// ListByPost returns comments oldest first.
	ListByPost(ctx context.Context, postID string, limit int, cursor string) ([]domain.Comment, string, error)
	Delete(ctx context.Context, postID, commentID string) error
}
