package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maildash/backend/internal/config"
	"maildash/backend/internal/storage/memory"
)

func newTestService() *Service {
	return NewService(memory.NewStore(), &config.JWTConfig{
		Secret:        "test-secret-that-is-long-enough-123456",
		Issuer:        "maildash",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: time.Hour,
	})
}

func TestService_Register(t *testing.T) {
	t.Run("第一个用户自动成为管理员", func(t *testing.T) {
		svc := newTestService()

		resp, err := svc.Register(nil, "alice", "password123")
		require.NoError(t, err)
		assert.True(t, resp.User.IsAdmin)
		assert.Equal(t, "alice", resp.User.Username)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
	})

	t.Run("已有用户后匿名注册被拒绝", func(t *testing.T) {
		svc := newTestService()

		_, err := svc.Register(nil, "alice", "password123")
		require.NoError(t, err)

		_, err = svc.Register(nil, "bob", "password123")
		assert.ErrorIs(t, err, ErrRegistrationClosed)
	})

	t.Run("管理员可以创建后续用户且默认为普通用户", func(t *testing.T) {
		svc := newTestService()

		first, err := svc.Register(nil, "alice", "password123")
		require.NoError(t, err)

		resp, err := svc.Register(first.User, "bob", "password123")
		require.NoError(t, err)
		assert.False(t, resp.User.IsAdmin)
	})

	t.Run("普通用户不能创建新账号", func(t *testing.T) {
		svc := newTestService()

		admin, err := svc.Register(nil, "alice", "password123")
		require.NoError(t, err)
		bob, err := svc.Register(admin.User, "bob", "password123")
		require.NoError(t, err)

		_, err = svc.Register(bob.User, "carol", "password123")
		assert.ErrorIs(t, err, ErrRegistrationClosed)
	})

	t.Run("重复用户名注册失败", func(t *testing.T) {
		svc := newTestService()

		admin, err := svc.Register(nil, "alice", "password123")
		require.NoError(t, err)

		_, err = svc.Register(admin.User, "Alice", "password123")
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("非法用户名与弱密码被拒绝", func(t *testing.T) {
		svc := newTestService()

		_, err := svc.Register(nil, "ab", "password123")
		assert.ErrorIs(t, err, ErrInvalidUsername)

		_, err = svc.Register(nil, "with space", "password123")
		assert.ErrorIs(t, err, ErrInvalidUsername)

		_, err = svc.Register(nil, "alice", "short")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})
}

func TestService_RegistrationOpen(t *testing.T) {
	svc := newTestService()

	open, err := svc.RegistrationOpen()
	require.NoError(t, err)
	assert.True(t, open)

	_, err = svc.Register(nil, "alice", "password123")
	require.NoError(t, err)

	open, err = svc.RegistrationOpen()
	require.NoError(t, err)
	assert.False(t, open)
}

func TestService_Login(t *testing.T) {
	svc := newTestService()
	_, err := svc.Register(nil, "alice", "password123")
	require.NoError(t, err)

	t.Run("正确凭证登录成功", func(t *testing.T) {
		resp, err := svc.Login("alice", "password123")
		require.NoError(t, err)
		assert.Equal(t, "alice", resp.User.Username)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("用户名大小写不敏感", func(t *testing.T) {
		resp, err := svc.Login("ALICE", "password123")
		require.NoError(t, err)
		assert.Equal(t, "alice", resp.User.Username)
	})

	t.Run("错误密码与不存在的用户返回同一错误", func(t *testing.T) {
		_, err := svc.Login("alice", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Login("nobody", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_Refresh(t *testing.T) {
	svc := newTestService()
	resp, err := svc.Register(nil, "alice", "password123")
	require.NoError(t, err)

	t.Run("刷新令牌换发新令牌对", func(t *testing.T) {
		refreshed, err := svc.Refresh(resp.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, refreshed.User.ID)
		assert.NotEmpty(t, refreshed.AccessToken)
	})

	t.Run("非法令牌刷新失败", func(t *testing.T) {
		_, err := svc.Refresh("not-a-token")
		assert.Error(t, err)
	})
}

func TestService_CurrentUser(t *testing.T) {
	svc := newTestService()
	resp, err := svc.Register(nil, "alice", "password123")
	require.NoError(t, err)

	user, err := svc.CurrentUser(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.True(t, user.IsAdmin)
}
