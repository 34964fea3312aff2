package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"cms-backend/internal/auth"
	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

type CommentPage struct {
	Comments []domain.Comment
	NextKey  string
}

// CommentService manages comments on posts.
type CommentService interface {
	Create(ctx context.Context, claim auth.Claim, postID, content, parentCommentID string) (*domain.Comment, error)
	List(ctx context.Context, postID string, limit int, nextKey string) (*CommentPage, error)
	Delete(ctx context.Context, claim auth.Claim, postID, commentID string) error
}

type commentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	users    repository.UserRepository
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, users repository.UserRepository) CommentService {
	return &commentService{comments: comments, posts: posts, users: users}
}

func (s *commentService) Create(ctx context.Context, claim auth.Claim, postID, content, parentCommentID string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if err := validation.Validate(content, validation.Required); err != nil {
		return nil, ErrCommentContentRequired
	}
	if strings.TrimSpace(postID) == "" {
		return nil, ErrPostIDRequired
	}

	if _, err := s.posts.Get(ctx, postID); err != nil {
		return nil, postError(err, "load post")
	}
	parentCommentID = strings.TrimSpace(parentCommentID)
	if parentCommentID != "" {
		if _, err := s.comments.Get(ctx, postID, parentCommentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrParentCommentNotFound
			}
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
	}

	author, err := s.users.GetByID(ctx, claim.UserID)
	if err != nil {
		return nil, userError(err, "load author")
	}

	comment := &domain.Comment{
		CommentID:       uuid.NewString(),
		PostID:          postID,
		UserID:          author.UserID,
		Username:        author.Username,
		Content:         content,
		ParentCommentID: parentCommentID,
		CommentAvatarID: author.ActiveAvatarID,
		CreatedAt:       time.Now().UTC(),
	}
	// the post may have been deleted since the lookup above
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, postError(err, "create comment")
	}
	return comment, nil
}

func (s *commentService) List(ctx context.Context, postID string, limit int, nextKey string) (*CommentPage, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, ErrPostIDRequired
	}
	comments, next, err := s.comments.ListByPost(ctx, postID, pageSize(limit, DefaultCommentPageSize), nextKey)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return &CommentPage{Comments: comments, NextKey: next}, nil
}

func (s *commentService) Delete(ctx context.Context, claim auth.Claim, postID, commentID string) error {
	comment, err := s.comments.Get(ctx, postID, commentID)
	if err != nil {
		return commentError(err, "load comment")
	}
	if err := auth.Authorize(claim, comment.UserID); err != nil {
		return ErrCommentDeleteForbidden
	}
	if err := s.comments.Delete(ctx, postID, commentID); err != nil {
		return commentError(err, "delete comment")
	}
	return nil
}

func commentError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCommentNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
