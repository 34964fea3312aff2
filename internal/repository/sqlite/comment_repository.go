package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

var commentSchema = []string{`
CREATE TABLE IF NOT EXISTS comments (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	comment_id TEXT NOT NULL UNIQUE,
	post_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	content TEXT NOT NULL,
	parent_comment_id TEXT NOT NULL DEFAULT '',
	comment_avatar_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);`, `
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments (post_id, seq);`,
}

const selectComment = `
SELECT seq, comment_id, post_id, user_id, username, content, parent_comment_id, comment_avatar_id, created_at
FROM comments`

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) repository.CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Init(ctx context.Context) error {
	for _, stmt := range commentSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create comments schema: %w", err)
		}
	}
	return nil
}

// Create inserts the comment and bumps the post's comment count. A missing post yields ErrNotFound.
func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE posts SET comment_count = comment_count + 1 WHERE post_id = ?`, comment.PostID)
	if err != nil {
		return fmt.Errorf("increment comment count: %w", err)
	}
	if err := expectOneRow(res, "increment comment count"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO comments (comment_id, post_id, user_id, username, content, parent_comment_id, comment_avatar_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.CommentID,
		comment.PostID,
		comment.UserID,
		comment.Username,
		comment.Content,
		comment.ParentCommentID,
		comment.CommentAvatarID,
		comment.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit comment: %w", err)
	}
	return nil
}

func (r *CommentRepository) Get(ctx context.Context, postID, commentID string) (*domain.Comment, error) {
	comment, _, err := scanComment(r.db.QueryRowContext(ctx,
		selectComment+` WHERE post_id = ? AND comment_id = ?`, postID, commentID))
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string, limit int, cursor string) ([]domain.Comment, string, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	rows, err := r.db.QueryContext(ctx, selectComment+`
WHERE post_id = ? AND seq > ?
ORDER BY seq
LIMIT ?`,
		postID, after, limit+1,
	)
	if err != nil {
		return nil, "", fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0, limit)
	var seqs []int64
	for rows.Next() {
		comment, seq, err := scanComment(rows)
		if err != nil {
			return nil, "", err
		}
		comments = append(comments, *comment)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate comments: %w", err)
	}

	if len(comments) <= limit {
		return comments, "", nil
	}
	return comments[:limit], encodeCursor(seqs[limit-1]), nil
}

// Delete removes the comment and decrements the post's comment count.
func (r *CommentRepository) Delete(ctx context.Context, postID, commentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ? AND comment_id = ?`, postID, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if err := expectOneRow(res, "delete comment"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE posts SET comment_count = MAX(comment_count - 1, 0) WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("decrement comment count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit comment delete: %w", err)
	}
	return nil
}

func scanComment(row interface {
	Scan(dest ...any) error
}) (*domain.Comment, int64, error) {
	var (
		comment domain.Comment
		seq     int64
	)
	if err := row.Scan(
		&seq,
		&comment.CommentID,
		&comment.PostID,
		&comment.UserID,
		&comment.Username,
		&comment.Content,
		&comment.ParentCommentID,
		&comment.CommentAvatarID,
		&comment.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, repository.ErrNotFound
		}
		return nil, 0, fmt.Errorf("scan comment: %w", err)
	}
	return &comment, seq, nil
}
