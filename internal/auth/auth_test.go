package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "backend-api")

	token, tokenID, err := manager.Generate("17", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, tokenID)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "17", claims.Subject)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, tokenID, claims.ID)
	assert.Equal(t, "backend-api", claims.Issuer)
}

func TestJWTGenerateEmptySubject(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "backend-api")
	_, _, err := manager.Generate("", "admin")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-a", time.Hour, "backend-api")
	verifier := NewJWTManager("secret-b", time.Hour, "backend-api")

	token, _, err := issuer.Generate("17", "admin")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateExpired(t *testing.T) {
	manager := NewJWTManager("secret", -time.Minute, "backend-api")
	token, _, err := manager.Generate("17", "admin")
	require.NoError(t, err)

	_, err = manager.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "backend-api")
	_, err := manager.Validate("  ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenFromHeader(t *testing.T) {
	_, err := TokenFromHeader("nope")
	assert.ErrorIs(t, err, ErrMissingToken)

	token, err := TokenFromHeader("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	token, err = TokenFromHeader("bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", hash)

	assert.True(t, CheckPassword(hash, "hunter2hunter2"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
