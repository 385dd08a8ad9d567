package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "secret123", hash)

	assert.NoError(t, ComparePasswordAndHash("secret123", hash))
}

func TestHashPassword_RejectsEmpty(t *testing.T) {
	_, err := HashPassword("", bcrypt.MinCost)
	require.Error(t, err)
}

func TestComparePasswordAndHash_MismatchIsDomainError(t *testing.T) {
	hash, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)

	err = ComparePasswordAndHash("wrong-password", hash)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestComparePasswordAndHash_MalformedHash(t *testing.T) {
	err := ComparePasswordAndHash("secret123", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
