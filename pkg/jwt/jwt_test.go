package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhub/pkg/errcode"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateToken("user-1", 1, secret, 1)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserId)
	assert.Equal(t, 1, claims.PlatformId)
	assert.Equal(t, "workhub", claims.Issuer)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", 1, "secret-a", 1)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret-b")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("user-1", 1, "secret", -1)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	assert.Error(t, err)
}

func TestValidateTokenMismatch(t *testing.T) {
	secret := "secret"
	token, err := GenerateToken("user-1", 1, secret, 1)
	require.NoError(t, err)

	_, err = ValidateToken(token, secret, "user-2", 1)
	assert.ErrorIs(t, err, errcode.ErrTokenMismatch)

	_, err = ValidateToken(token, secret, "user-1", 2)
	assert.ErrorIs(t, err, errcode.ErrTokenMismatch)

	claims, err := ValidateToken(token, secret, "user-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserId)
}
