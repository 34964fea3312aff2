package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cms-backend/internal/domain"
	"cms-backend/internal/repository"
)

var userSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	active_avatar_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS user_avatars (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	avatar_id TEXT NOT NULL,
	data_url TEXT NOT NULL,
	uploaded_at DATETIME NOT NULL,
	UNIQUE (user_id, avatar_id)
);`,
}

const selectUser = `
SELECT user_id, username, password_hash, role, email, active_avatar_id, created_at, updated_at
FROM users`

type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *UserRepository) Init(ctx context.Context) error {
	for _, stmt := range userSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create users schema: %w", err)
		}
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	role, _ := user.Activation.Role()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (user_id, username, password_hash, role, email, active_avatar_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		user.UserID,
		user.Username,
		user.PasswordHash,
		string(role),
		user.Email,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users.username") {
			return repository.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.get(ctx, `user_id = ?`, userID)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.get(ctx, `username = ?`, username)
}

// get reads the user row and its avatars in one transaction so the active
// avatar id always refers to a loaded avatar.
func (r *UserRepository) get(ctx context.Context, where string, arg any) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx, selectUser+` WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	if err := loadAvatars(ctx, tx, user); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user read: %w", err)
	}
	return user, nil
}

// List returns every user ordered by registration time. Avatars are not loaded.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+` ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) SetActivation(ctx context.Context, userID string, activation domain.Activation) error {
	role, _ := activation.Role()
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE user_id = ?`,
		string(role), r.now(), userID)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return expectOneRow(res, "update user role")
}

func (r *UserRepository) SetEmail(ctx context.Context, userID, email string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET email = ?, updated_at = ? WHERE user_id = ?`,
		email, r.now(), userID)
	if err != nil {
		return fmt.Errorf("update user email: %w", err)
	}
	return expectOneRow(res, "update user email")
}

func (r *UserRepository) SwapPasswordHash(ctx context.Context, userID, oldHash, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_hash = ?, updated_at = ?
WHERE user_id = ? AND password_hash = ?`,
		newHash, r.now(), userID, oldHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("password hash rows affected: %w", err)
	}
	if aff == 1 {
		return nil
	}
	exists, err := r.exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func (r *UserRepository) AppendAvatar(ctx context.Context, userID string, avatar domain.Avatar, max int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var users, avatars int
	if err := tx.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM users WHERE user_id = ?),
       (SELECT COUNT(*) FROM user_avatars WHERE user_id = ?)`,
		userID, userID,
	).Scan(&users, &avatars); err != nil {
		return fmt.Errorf("count avatars: %w", err)
	}
	if users == 0 {
		return repository.ErrNotFound
	}
	if avatars >= max {
		return repository.ErrAvatarLimit
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO user_avatars (user_id, avatar_id, data_url, uploaded_at)
VALUES (?, ?, ?, ?)`,
		userID, avatar.AvatarID, avatar.DataURL, avatar.UploadedAt,
	); err != nil {
		return fmt.Errorf("insert avatar: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET active_avatar_id = ?, updated_at = ? WHERE user_id = ?`,
		avatar.AvatarID, r.now(), userID); err != nil {
		return fmt.Errorf("activate avatar: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit avatar append: %w", err)
	}
	return nil
}

func (r *UserRepository) SetActiveAvatar(ctx context.Context, userID, avatarID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET active_avatar_id = ?, updated_at = ?
WHERE user_id = ?
  AND EXISTS (SELECT 1 FROM user_avatars WHERE user_id = ? AND avatar_id = ?)`,
		avatarID, r.now(), userID, userID, avatarID)
	if err != nil {
		return fmt.Errorf("set active avatar: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("active avatar rows affected: %w", err)
	}
	if aff == 1 {
		return nil
	}
	exists, err := r.exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrAvatarNotFound
}

func (r *UserRepository) RemoveAvatar(ctx context.Context, userID, avatarID string) (*domain.Avatar, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var active string
	if err := tx.QueryRowContext(ctx, `SELECT active_avatar_id FROM users WHERE user_id = ?`, userID).Scan(&active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("load active avatar: %w", err)
	}

	avatar := domain.Avatar{AvatarID: avatarID}
	err = tx.QueryRowContext(ctx, `
SELECT data_url, uploaded_at FROM user_avatars WHERE user_id = ? AND avatar_id = ?`,
		userID, avatarID,
	).Scan(&avatar.DataURL, &avatar.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load avatar: %w", err)
	}
	if active == avatarID {
		return nil, repository.ErrActiveAvatar
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_avatars WHERE user_id = ? AND avatar_id = ?`, userID, avatarID); err != nil {
		return nil, fmt.Errorf("delete avatar: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = ? WHERE user_id = ?`, r.now(), userID); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit avatar delete: %w", err)
	}
	return &avatar, nil
}

func loadAvatars(ctx context.Context, tx *sql.Tx, user *domain.User) error {
	rows, err := tx.QueryContext(ctx, `
SELECT avatar_id, data_url, uploaded_at
FROM user_avatars
WHERE user_id = ?
ORDER BY seq`,
		user.UserID,
	)
	if err != nil {
		return fmt.Errorf("list avatars: %w", err)
	}
	defer rows.Close()

	user.Avatars = []domain.Avatar{}
	for rows.Next() {
		var a domain.Avatar
		if err := rows.Scan(&a.AvatarID, &a.DataURL, &a.UploadedAt); err != nil {
			return fmt.Errorf("scan avatar: %w", err)
		}
		user.Avatars = append(user.Avatars, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate avatars: %w", err)
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, userID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return n > 0, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.PasswordHash,
		&role,
		&user.Email,
		&user.ActiveAvatarID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if role != "" {
		user.Activation = domain.Activated(domain.Role(role))
	}
	return &user, nil
}

func expectOneRow(res sql.Result, op string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if aff == 0 {
		return repository.ErrNotFound
	}
	return nil
}
