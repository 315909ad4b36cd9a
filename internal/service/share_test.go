package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"maildash/backend/internal/config"
	"maildash/backend/internal/domain"
	"maildash/backend/internal/monitoring"
	"maildash/backend/internal/storage/memory"
)

// Prometheus 指标注册在默认注册表里，整个测试包共用一份
var (
	testMetricsOnce sync.Once
	testMetrics     *monitoring.Metrics
)

func sharedMetrics() *monitoring.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = monitoring.NewMetrics()
	})
	return testMetrics
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Mail: config.MailConfig{Domain: "dynmsl.com"},
		Upstream: config.UpstreamConfig{
			BaseURL: upstreamURL,
			Token:   "test-token",
			Timeout: 2 * time.Second,
		},
	}
}

func newShareFixture(t *testing.T, handler http.HandlerFunc) (*ShareService, *memory.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := memory.NewStore()
	settings := NewSettingsService(store, testConfig(server.URL), zap.NewNop())
	return NewShareService(store, settings, sharedMetrics(), zap.NewNop()), store
}

func seedConfig(t *testing.T, store *memory.Store, maxCount, receivedCount int, expiresAt time.Time) *domain.EmailConfig {
	t.Helper()
	now := time.Now().UTC()
	cfg := &domain.EmailConfig{
		ID:            uuid.New().String(),
		UserID:        "owner",
		TargetEmail:   uuid.New().String() + "@dynmsl.com",
		Source:        domain.SourceImport,
		ShareType:     domain.ShareTypeHTML,
		DurationDays:  1,
		MaxCount:      maxCount,
		ReceivedCount: receivedCount,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.SaveConfig(cfg))
	return cfg
}

func TestShareService_Consume(t *testing.T) {
	future := time.Now().UTC().Add(24 * time.Hour)

	t.Run("读到邮件消耗一次配额", func(t *testing.T) {
		svc, store := newShareFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"subject":"hello"}]`))
		})
		cfg := seedConfig(t, store, 3, 0, future)

		result, err := svc.Consume(context.Background(), cfg.ID)
		require.NoError(t, err)
		require.NotNil(t, result.Message)
		assert.True(t, result.HasData)
		assert.Equal(t, "hello", result.Message.Subject)
		assert.Equal(t, 2, result.Remaining)
		assert.Greater(t, result.RemainingMs, int64(0))

		updated, err := store.GetConfig(cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.ReceivedCount)
	})

	t.Run("空邮箱不消耗配额", func(t *testing.T) {
		svc, store := newShareFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})
		cfg := seedConfig(t, store, 3, 0, future)

		result, err := svc.Consume(context.Background(), cfg.ID)
		require.NoError(t, err)
		assert.Nil(t, result.Message)
		assert.False(t, result.HasData)
		assert.Equal(t, 3, result.Remaining)

		updated, err := store.GetConfig(cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.ReceivedCount)
	})

	t.Run("上游错误不消耗配额", func(t *testing.T) {
		svc, store := newShareFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		cfg := seedConfig(t, store, 3, 0, future)

		_, err := svc.Consume(context.Background(), cfg.ID)
		require.Error(t, err)

		updated, err := store.GetConfig(cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.ReceivedCount)
	})

	t.Run("已过期返回过期错误", func(t *testing.T) {
		svc, store := newShareFixture(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("expired config must not reach upstream")
		})
		cfg := seedConfig(t, store, 3, 0, time.Now().UTC().Add(-time.Hour))

		_, err := svc.Consume(context.Background(), cfg.ID)
		assert.ErrorIs(t, err, ErrShareExpired)
	})

	t.Run("配额用尽返回用尽错误且不访问上游", func(t *testing.T) {
		svc, store := newShareFixture(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("exhausted config must not reach upstream")
		})
		cfg := seedConfig(t, store, 2, 2, future)

		_, err := svc.Consume(context.Background(), cfg.ID)
		assert.ErrorIs(t, err, ErrShareExhausted)
	})

	t.Run("配置不存在向上返回存储错误", func(t *testing.T) {
		svc, _ := newShareFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})

		_, err := svc.Consume(context.Background(), "missing")
		assert.Error(t, err)
	})

	t.Run("并发争抢最后一个配额只有一个成功", func(t *testing.T) {
		svc, store := newShareFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"subject":"race"}]`))
		})
		cfg := seedConfig(t, store, 5, 4, future)

		const workers = 10
		var wg sync.WaitGroup
		succeeded := make(chan struct{}, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := svc.Consume(context.Background(), cfg.ID)
				if err == nil && result.Message != nil {
					succeeded <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(succeeded)

		wins := 0
		for range succeeded {
			wins++
		}
		assert.Equal(t, 1, wins)

		updated, err := store.GetConfig(cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, updated.ReceivedCount)
	})
}
