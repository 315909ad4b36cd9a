package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-0123456789abcdef"

func TestLoad(t *testing.T) {
	t.Run("默认值加载", func(t *testing.T) {
		t.Setenv("MAILDASH_JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "dynmsl.com", cfg.Mail.Domain)
		assert.Equal(t, "https://mail.dynmsl.com/api/public", cfg.Upstream.BaseURL)
		assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Empty(t, cfg.Database.Type)
		assert.Equal(t, "maildash", cfg.JWT.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.True(t, cfg.RateLimit.Enabled)
		assert.Equal(t, 60, cfg.RateLimit.Limit)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	})

	t.Run("环境变量覆盖", func(t *testing.T) {
		t.Setenv("MAILDASH_JWT_SECRET", testSecret)
		t.Setenv("MAILDASH_SERVER_PORT", "9000")
		t.Setenv("MAILDASH_MAIL_DOMAIN", "Example.ORG")
		t.Setenv("MAILDASH_UPSTREAM_BASE_URL", "https://gw.example.org/api/")
		t.Setenv("MAILDASH_CORS_ALLOWED_ORIGINS", "https://a.com, https://b.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "example.org", cfg.Mail.Domain)
		assert.Equal(t, "https://gw.example.org/api", cfg.Upstream.BaseURL)
		assert.Equal(t, []string{"https://a.com", "https://b.com"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("拒绝默认或过短的 JWT 密钥", func(t *testing.T) {
		t.Setenv("MAILDASH_JWT_SECRET", "change-me-in-production")
		_, err := Load()
		assert.Error(t, err)

		t.Setenv("MAILDASH_JWT_SECRET", "short")
		_, err = Load()
		assert.Error(t, err)
	})

	t.Run("非法超时时间回落默认值", func(t *testing.T) {
		t.Setenv("MAILDASH_JWT_SECRET", testSecret)
		t.Setenv("MAILDASH_UPSTREAM_TIMEOUT", "not-a-duration")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	})
}
