package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(accessExpiry time.Duration) *Manager {
	return NewManager("unit-test-secret-0123456789abcdef", "maildash", accessExpiry, time.Hour)
}

func TestManager_GenerateAndValidate(t *testing.T) {
	m := newTestManager(15 * time.Minute)

	pair, err := m.GenerateTokenPair("user-1", "alice", true)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "maildash", claims.Issuer)
}

func TestManager_ValidateToken(t *testing.T) {
	m := newTestManager(15 * time.Minute)

	t.Run("篡改的令牌校验失败", func(t *testing.T) {
		pair, err := m.GenerateTokenPair("user-1", "alice", false)
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("其他密钥签发的令牌校验失败", func(t *testing.T) {
		other := NewManager("another-secret-key-0123456789abcdef", "maildash", time.Minute, time.Hour)
		pair, err := other.GenerateTokenPair("user-1", "alice", false)
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("过期令牌返回过期错误", func(t *testing.T) {
		expired := newTestManager(-time.Minute)
		pair, err := expired.GenerateTokenPair("user-1", "alice", false)
		require.NoError(t, err)

		_, err = expired.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestManager_RefreshTokenPair(t *testing.T) {
	m := newTestManager(15 * time.Minute)

	pair, err := m.GenerateTokenPair("user-1", "alice", true)
	require.NoError(t, err)

	refreshed, err := m.RefreshTokenPair(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := m.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.IsAdmin)

	_, err = m.RefreshTokenPair("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
