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

const (
	DefaultPostPageSize    = 20
	DefaultCommentPageSize = 50
	MaxPageSize            = 100
)

// PostInput carries the fields of a new post.
type PostInput struct {
	Title   string
	Content string
	Tags    []string
	Status  domain.PostStatus
}

func (in PostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
}

// PostPatch lists the fields to change; nil leaves a field untouched.
type PostPatch struct {
	Title   *string
	Content *string
	Tags    []string
	Status  *domain.PostStatus
}

type PostPage struct {
	Posts   []domain.Post
	LastKey string
}

// PostService manages posts. Mutations are restricted to the author.
type PostService interface {
	Create(ctx context.Context, claim auth.Claim, in PostInput) (*domain.Post, error)
	Get(ctx context.Context, postID string) (*domain.Post, error)
	List(ctx context.Context, limit int, lastKey string) (*PostPage, error)
	Update(ctx context.Context, claim auth.Claim, postID string, patch PostPatch) (*domain.Post, error)
	Delete(ctx context.Context, claim auth.Claim, postID string) error
}

type postService struct {
	posts repository.PostRepository
	users repository.UserRepository
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository) PostService {
	return &postService{posts: posts, users: users}
}

func (s *postService) Create(ctx context.Context, claim auth.Claim, in PostInput) (*domain.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := in.Validate(); err != nil {
		return nil, ErrPostFieldsRequired
	}
	status, err := postStatus(in.Status)
	if err != nil {
		return nil, err
	}

	author, err := s.users.GetByID(ctx, claim.UserID)
	if err != nil {
		return nil, userError(err, "load author")
	}

	now := time.Now().UTC()
	post := &domain.Post{
		PostID:       uuid.NewString(),
		UserID:       author.UserID,
		Username:     author.Username,
		Title:        in.Title,
		Content:      in.Content,
		Tags:         cleanTags(in.Tags),
		PostAvatarID: author.ActiveAvatarID,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

func (s *postService) Get(ctx context.Context, postID string) (*domain.Post, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, ErrPostIDRequired
	}
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, postError(err, "load post")
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, limit int, lastKey string) (*PostPage, error) {
	posts, next, err := s.posts.List(ctx, pageSize(limit, DefaultPostPageSize), lastKey)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return &PostPage{Posts: posts, LastKey: next}, nil
}

func (s *postService) Update(ctx context.Context, claim auth.Claim, postID string, patch PostPatch) (*domain.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(claim, post.UserID); err != nil {
		return nil, ErrPostEditForbidden
	}

	if patch.Title != nil {
		post.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		post.Content = strings.TrimSpace(*patch.Content)
	}
	if post.Title == "" || post.Content == "" {
		return nil, ErrPostFieldsRequired
	}
	if patch.Tags != nil {
		post.Tags = cleanTags(patch.Tags)
	}
	if patch.Status != nil {
		status, err := postStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		post.Status = status
	}
	post.UpdatedAt = time.Now().UTC()

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, postError(err, "update post")
	}
	return post, nil
}

// Delete removes the post and all of its comments.
func (s *postService) Delete(ctx context.Context, claim auth.Claim, postID string) error {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	if err := auth.Authorize(claim, post.UserID); err != nil {
		return ErrPostDeleteForbidden
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return postError(err, "delete post")
	}
	return nil
}

func postStatus(s domain.PostStatus) (domain.PostStatus, error) {
	switch s {
	case "":
		return domain.PostStatusPublished, nil
	case domain.PostStatusPublished, domain.PostStatusDraft:
		return s, nil
	}
	return "", ErrInvalidPostStatus
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func pageSize(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

func postError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPostNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
