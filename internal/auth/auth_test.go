package auth

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := c.Encrypt("ya29.access-token")
	require.NoError(t, err)
	assert.NotEqual(t, "ya29.access-token", sealed)

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token", plain)
}

func TestTokenCipherEmptyPlaintext(t *testing.T) {
	c, err := NewTokenCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestTokenCipherRejectsBadKey(t *testing.T) {
	_, err := NewTokenCipher("not base64!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewTokenCipher(short)
	assert.Error(t, err)
}

func TestTokenCipherWrongKeyFails(t *testing.T) {
	c1, err := NewTokenCipher(testKey(t))
	require.NoError(t, err)
	c2, err := NewTokenCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestTokenCipherRejectsGarbage(t *testing.T) {
	c, err := NewTokenCipher(testKey(t))
	require.NoError(t, err)

	_, err = c.Decrypt("%%%not-base64%%%")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("x")))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSessionIssueAndValidate(t *testing.T) {
	m := NewSessionManager("test-secret", 15*time.Minute)

	token, err := m.Issue("user-1", "alice@example.com")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestSessionRejectsWrongSecret(t *testing.T) {
	token, err := NewSessionManager("secret-a", time.Minute).Issue("user-1", "a@example.com")
	require.NoError(t, err)

	_, err = NewSessionManager("secret-b", time.Minute).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionExpiry(t *testing.T) {
	m := NewSessionManager("test-secret", -time.Minute)

	token, err := m.Issue("user-1", "a@example.com")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredSession)
}

func TestSessionRejectsGarbage(t *testing.T) {
	m := NewSessionManager("test-secret", time.Minute)

	_, err := m.Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidSession)
}
