package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "store_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := Open(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "admin", created.Username)
	assert.NotZero(t, created.CreatedUnixMillis)

	byID, err := s.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Username, byID.Username)
	assert.Equal(t, "hash", byID.PasswordHash)
	assert.False(t, byID.LastLoginUnixMillis.Valid)

	byName, err := s.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUserUniqueness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "admin", "other@example.com", "hash")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.CreateUser(ctx, "other", "admin@example.com", "hash")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateProfile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "taken", "taken@example.com", "hash")
	require.NoError(t, err)

	lastLogin := time.Now().UnixMilli()
	require.NoError(t, s.TouchLastLogin(ctx, u.ID, lastLogin))

	updated, err := s.UpdateProfile(ctx, u.ID, "admin2", "admin2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin2", updated.Username)
	assert.Equal(t, "admin2@example.com", updated.Email)
	require.True(t, updated.LastLoginUnixMillis.Valid, "update keeps the last login")
	assert.Equal(t, lastLogin, updated.LastLoginUnixMillis.Int64)

	reloaded, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin2", reloaded.Username)

	_, err = s.UpdateProfile(ctx, u.ID, "taken", "admin2@example.com")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.UpdateProfile(ctx, u.ID, "admin2", "taken@example.com")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Keeping your own names is not a conflict
	_, err = s.UpdateProfile(ctx, u.ID, "admin2", "admin2@example.com")
	assert.NoError(t, err)

	_, err = s.UpdateProfile(ctx, 9999, "x", "x@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTouchLastLogin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	require.NoError(t, s.TouchLastLogin(ctx, u.ID, now))

	reloaded, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, reloaded.LastLoginUnixMillis.Valid)
	assert.Equal(t, now, reloaded.LastLoginUnixMillis.Int64)

	assert.ErrorIs(t, s.TouchLastLogin(ctx, 9999, now), ErrUserNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)

	require.NoError(t, s.CreateSession(ctx, "tok-1", u.ID, time.Now().Add(time.Hour)))

	live, err := s.SessionExists(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, live)

	live, err = s.SessionExists(ctx, "tok-unknown")
	require.NoError(t, err)
	assert.False(t, live)

	require.NoError(t, s.DeleteSession(ctx, "tok-1"))
	live, err = s.SessionExists(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, live)

	assert.ErrorIs(t, s.DeleteSession(ctx, "tok-1"), ErrSessionNotFound)
}

func TestDeleteExpiredSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)

	require.NoError(t, s.CreateSession(ctx, "tok-old", u.ID, time.Now().Add(-time.Minute)))
	require.NoError(t, s.CreateSession(ctx, "tok-new", u.ID, time.Now().Add(time.Hour)))

	deleted, err := s.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	live, err := s.SessionExists(ctx, "tok-new")
	require.NoError(t, err)
	assert.True(t, live)
}
