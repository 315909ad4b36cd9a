package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampDurationDays(t *testing.T) {
	assert.Equal(t, DefaultDurationDays, ClampDurationDays(0))
	assert.Equal(t, MinDurationDays, ClampDurationDays(-3))
	assert.Equal(t, 30, ClampDurationDays(30))
	assert.Equal(t, MaxDurationDays, ClampDurationDays(10000))
}

func TestClampMaxCount(t *testing.T) {
	assert.Equal(t, DefaultMaxCount, ClampMaxCount(0))
	assert.Equal(t, MinMaxCount, ClampMaxCount(-1))
	assert.Equal(t, 500, ClampMaxCount(500))
	assert.Equal(t, MaxMaxCount, ClampMaxCount(99999))
}

func TestNormalizeShareType(t *testing.T) {
	assert.Equal(t, ShareTypeJSON, NormalizeShareType("json"))
	assert.Equal(t, ShareTypeHTML, NormalizeShareType("html"))
	assert.Equal(t, ShareTypeHTML, NormalizeShareType(""))
	assert.Equal(t, ShareTypeHTML, NormalizeShareType("xml"))
}

func TestParseEmails(t *testing.T) {
	t.Run("混合分隔符切分", func(t *testing.T) {
		emails := ParseEmails("a@x.com, b@x.com;c@x.com\nd@x.com\te@x.com")
		assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"}, emails)
	})

	t.Run("小写去重并保持顺序", func(t *testing.T) {
		emails := ParseEmails("B@x.com\na@x.com\nb@X.COM")
		assert.Equal(t, []string{"b@x.com", "a@x.com"}, emails)
	})

	t.Run("空白输入返回空列表", func(t *testing.T) {
		assert.Empty(t, ParseEmails("  \n ,; \t"))
	})
}

func TestHasDomainSuffix(t *testing.T) {
	assert.True(t, HasDomainSuffix("abc@dynmsl.com", "dynmsl.com"))
	assert.True(t, HasDomainSuffix(" ABC@DYNMSL.COM ", "dynmsl.com"))
	assert.False(t, HasDomainSuffix("abc@gmail.com", "dynmsl.com"))
	assert.False(t, HasDomainSuffix("abc@notdynmsl.com", "dynmsl.com"))
}

func TestEmailConfigState(t *testing.T) {
	now := time.Now().UTC()
	cfg := &EmailConfig{
		MaxCount:      3,
		ReceivedCount: 2,
		ExpiresAt:     now.Add(time.Hour),
	}

	assert.Equal(t, 1, cfg.Remaining())
	assert.False(t, cfg.IsExhausted())
	assert.False(t, cfg.IsExpired(now))

	cfg.ReceivedCount = 3
	assert.Zero(t, cfg.Remaining())
	assert.True(t, cfg.IsExhausted())

	// 过期时刻本身算已过期
	assert.True(t, cfg.IsExpired(cfg.ExpiresAt))
	assert.True(t, cfg.IsExpired(cfg.ExpiresAt.Add(time.Second)))
}

func TestCanManage(t *testing.T) {
	owner := &User{ID: "u1"}
	admin := &User{ID: "a1", IsAdmin: true}
	other := &User{ID: "u2"}

	assert.True(t, CanManage(owner, "u1"))
	assert.True(t, CanManage(admin, "u1"))
	assert.False(t, CanManage(other, "u1"))
	assert.False(t, CanManage(nil, "u1"))
}
