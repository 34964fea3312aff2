package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

var postSchema = []string{`
CREATE TABLE IF NOT EXISTS posts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	post_avatar_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	comment_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`,
}

const selectPost = `
SELECT seq, post_id, user_id, username, title, content, tags, post_avatar_id, status, comment_count, created_at, updated_at
FROM posts`

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Init(ctx context.Context) error {
	for _, stmt := range postSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create posts schema: %w", err)
		}
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	tags, err := encodeTags(post.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO posts (post_id, user_id, username, title, content, tags, post_avatar_id, status, comment_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.PostID,
		post.UserID,
		post.Username,
		post.Title,
		post.Content,
		tags,
		post.PostAvatarID,
		string(post.Status),
		post.CommentCount,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, postID string) (*domain.Post, error) {
	post, _, err := scanPost(r.db.QueryRowContext(ctx, selectPost+` WHERE post_id = ?`, postID))
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *PostRepository) List(ctx context.Context, limit int, cursor string) ([]domain.Post, string, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	query := selectPost + ` ORDER BY seq DESC LIMIT ?`
	args := []any{limit + 1}
	if after > 0 {
		query = selectPost + ` WHERE seq < ? ORDER BY seq DESC LIMIT ?`
		args = []any{after, limit + 1}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, limit)
	var seqs []int64
	for rows.Next() {
		post, seq, err := scanPost(rows)
		if err != nil {
			return nil, "", err
		}
		posts = append(posts, *post)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate posts: %w", err)
	}

	if len(posts) <= limit {
		return posts, "", nil
	}
	return posts[:limit], encodeCursor(seqs[limit-1]), nil
}

func (r *PostRepository) Update(ctx context.Context, post *domain.Post) error {
	tags, err := encodeTags(post.Tags)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE posts SET title = ?, content = ?, tags = ?, status = ?, updated_at = ?
WHERE post_id = ?`,
		post.Title,
		post.Content,
		tags,
		string(post.Status),
		post.UpdatedAt,
		post.PostID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return expectOneRow(res, "update post")
}

func (r *PostRepository) Delete(ctx context.Context, postID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("delete post comments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE post_id = ?`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if err := expectOneRow(res, "delete post"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post delete: %w", err)
	}
	return nil
}

func scanPost(row interface {
	Scan(dest ...any) error
}) (*domain.Post, int64, error) {
	var (
		post   domain.Post
		seq    int64
		tags   string
		status string
	)
	if err := row.Scan(
		&seq,
		&post.PostID,
		&post.UserID,
		&post.Username,
		&post.Title,
		&post.Content,
		&tags,
		&post.PostAvatarID,
		&status,
		&post.CommentCount,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, repository.ErrNotFound
		}
		return nil, 0, fmt.Errorf("scan post: %w", err)
	}
	post.Status = domain.PostStatus(status)
	if err := json.Unmarshal([]byte(tags), &post.Tags); err != nil {
		return nil, 0, fmt.Errorf("decode post tags: %w", err)
	}
	return &post, seq, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode post tags: %w", err)
	}
	return string(b), nil
}
