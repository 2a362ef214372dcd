package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists users and their login sessions in SQLite
type Store struct {
	db *sql.DB
}

// User is a stored account row
type User struct {
	ID                  int64
	Username            string
	Email               string
	PasswordHash        string
	CreatedUnixMillis   int64
	UpdatedUnixMillis   int64
	LastLoginUnixMillis sql.NullInt64
}

// Session is a stored login session row, keyed by JWT token ID
type Session struct {
	TokenID           string
	UserID            int64
	CreatedUnixMillis int64
	ExpiresUnixMillis int64
}

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email is already taken")
	ErrUsernameTaken   = errors.New("username is already taken")
	ErrSessionNotFound = errors.New("session not found")
)

// Open creates or opens the store at path
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_unix_millis INTEGER NOT NULL,
			updated_unix_millis INTEGER NOT NULL,
			last_login_unix_millis INTEGER NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token_id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			created_unix_millis INTEGER NOT NULL,
			expires_unix_millis INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user
			ON sessions(user_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// CreateUser inserts a new account. Username and email must be unique.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE username = ?", username,
	).Scan(&existing)
	if err == nil {
		return User{}, ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("failed to check username: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email = ?", email,
	).Scan(&existing)
	if err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("failed to check email: %w", err)
	}

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_unix_millis, updated_unix_millis)
		 VALUES (?, ?, ?, ?, ?)`,
		username, email, passwordHash, now, now,
	)
	if err != nil {
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("failed to read inserted id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return User{
		ID:                id,
		Username:          username,
		Email:             email,
		PasswordHash:      passwordHash,
		CreatedUnixMillis: now,
		UpdatedUnixMillis: now,
	}, nil
}

// GetUserByID returns the user with the given id
func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	return s.getUser(ctx, "SELECT id, username, email, password_hash, created_unix_millis, updated_unix_millis, last_login_unix_millis FROM users WHERE id = ?", id)
}

// GetUserByUsername returns the user with the given username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, "SELECT id, username, email, password_hash, created_unix_millis, updated_unix_millis, last_login_unix_millis FROM users WHERE username = ?", username)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.CreatedUnixMillis, &u.UpdatedUnixMillis, &u.LastLoginUnixMillis,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// UpdateProfile updates the username and email of an account
func (s *Store) UpdateProfile(ctx context.Context, id int64, username, email string) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current User
	err = tx.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_unix_millis, updated_unix_millis, last_login_unix_millis FROM users WHERE id = ?", id,
	).Scan(&current.ID, &current.Username, &current.Email, &current.PasswordHash,
		&current.CreatedUnixMillis, &current.UpdatedUnixMillis, &current.LastLoginUnixMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}

	var existing int64
	if username != current.Username {
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM users WHERE username = ? AND id != ?", username, id,
		).Scan(&existing)
		if err == nil {
			return User{}, ErrUsernameTaken
		} else if !errors.Is(err, sql.ErrNoRows) {
			return User{}, fmt.Errorf("failed to check username: %w", err)
		}
	}
	if email != current.Email {
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM users WHERE email = ? AND id != ?", email, id,
		).Scan(&existing)
		if err == nil {
			return User{}, ErrEmailTaken
		} else if !errors.Is(err, sql.ErrNoRows) {
			return User{}, fmt.Errorf("failed to check email: %w", err)
		}
	}

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx,
		"UPDATE users SET username = ?, email = ?, updated_unix_millis = ? WHERE id = ?",
		username, email, now, id,
	)
	if err != nil {
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	current.Username = username
	current.Email = email
	current.UpdatedUnixMillis = now
	return current, nil
}

// TouchLastLogin records a successful login time
func (s *Store) TouchLastLogin(ctx context.Context, id int64, nowMillis int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login_unix_millis = ? WHERE id = ?",
		nowMillis, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateSession inserts a login session row
func (s *Store) CreateSession(ctx context.Context, tokenID string, userID int64, expires time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token_id, user_id, created_unix_millis, expires_unix_millis)
		 VALUES (?, ?, ?, ?)`,
		tokenID, userID, time.Now().UnixMilli(), expires.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// DeleteSession removes a session row, revoking its token
func (s *Store) DeleteSession(ctx context.Context, tokenID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE token_id = ?", tokenID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SessionExists reports whether a live (unexpired) session exists
func (s *Store) SessionExists(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM sessions WHERE token_id = ? AND expires_unix_millis > ?",
		tokenID, time.Now().UnixMilli(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query session: %w", err)
	}
	return true, nil
}

// DeleteExpiredSessions removes sessions past their expiry, returning how
// many were deleted
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_unix_millis <= ?",
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
