package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"maildash/backend/internal/domain"
	"maildash/backend/internal/storage/memory"
)

func newBatchFixture(t *testing.T, handler http.HandlerFunc) (*BatchService, *memory.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := memory.NewStore()
	cfg := testConfig(server.URL)
	settings := NewSettingsService(store, cfg, zap.NewNop())
	svc := NewBatchService(store, store, settings, cfg, sharedMetrics(), zap.NewNop())
	return svc, store
}

func testAdmin() *domain.User {
	return &domain.User{ID: "admin-id", Username: "admin", IsAdmin: true}
}

func TestBatchService_Generate(t *testing.T) {
	t.Run("整批注册成功时任务完成且配置落库", func(t *testing.T) {
		svc, store := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/addUser", r.URL.Path)
			w.Write([]byte(`{"success":true}`))
		})

		task, err := svc.Generate(context.Background(), testAdmin(), GenerateInput{
			CharType:     "number",
			CharLength:   6,
			Count:        5,
			DurationDays: 7,
			MaxCount:     50,
			ShareType:    "json",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
		require.Len(t, task.GeneratedAccounts, 5)

		for _, account := range task.GeneratedAccounts {
			assert.Equal(t, domain.AccountStatusSuccess, account.Status)
			assert.NotEmpty(t, account.EmailConfigID)
			assert.Len(t, account.Password, domain.PasswordLength)

			cfg, err := store.GetConfig(account.EmailConfigID)
			require.NoError(t, err)
			assert.Equal(t, account.Email, cfg.TargetEmail)
			assert.Equal(t, domain.SourceGenerated, cfg.Source)
			assert.Equal(t, 7, cfg.DurationDays)
			assert.Equal(t, 50, cfg.MaxCount)
			assert.Equal(t, domain.ShareTypeJSON, cfg.ShareType)
		}

		// 纯数字字符集
		for _, account := range task.GeneratedAccounts {
			local := account.Email[:6]
			for _, r := range local {
				assert.True(t, r >= '0' && r <= '9', account.Email)
			}
			assert.Contains(t, account.Email, "@dynmsl.com")
		}
	})

	t.Run("上游拒绝时任务失败但配置仍然落库", func(t *testing.T) {
		svc, store := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":500,"msg":"rejected"}`))
		})

		task, err := svc.Generate(context.Background(), testAdmin(), GenerateInput{
			CharType: "english",
			Count:    3,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, task.Status)
		require.Len(t, task.GeneratedAccounts, 3)

		for _, account := range task.GeneratedAccounts {
			assert.Equal(t, domain.AccountStatusFailed, account.Status)
			assert.NotEmpty(t, account.EmailConfigID)

			_, err := store.GetConfig(account.EmailConfigID)
			assert.NoError(t, err)
		}
	})

	t.Run("上游不可达时任务失败", func(t *testing.T) {
		svc, _ := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		task, err := svc.Generate(context.Background(), testAdmin(), GenerateInput{Count: 2})
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, task.Status)
	})

	t.Run("参数超界直接拒绝", func(t *testing.T) {
		svc, _ := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("invalid input must not reach upstream")
		})

		_, err := svc.Generate(context.Background(), testAdmin(), GenerateInput{Count: 101})
		assert.ErrorIs(t, err, ErrInvalidCount)

		_, err = svc.Generate(context.Background(), testAdmin(), GenerateInput{CharLength: 3})
		assert.ErrorIs(t, err, ErrInvalidCharLength)

		_, err = svc.Generate(context.Background(), testAdmin(), GenerateInput{CharType: "emoji"})
		assert.ErrorIs(t, err, ErrInvalidCharType)
	})

	t.Run("固定前缀拼在随机段之前", func(t *testing.T) {
		svc, _ := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true}`))
		})

		task, err := svc.Generate(context.Background(), testAdmin(), GenerateInput{
			CharType:   "number",
			CharLength: 4,
			Count:      5,
			Prefix:     " T ",
		})
		require.NoError(t, err)
		assert.Equal(t, "t", task.Prefix)

		for _, account := range task.GeneratedAccounts {
			local := account.Email[:len(account.Email)-len("@dynmsl.com")]
			require.Len(t, local, 5, account.Email)
			assert.Equal(t, byte('t'), local[0])
			for _, r := range local[1:] {
				assert.True(t, r >= '0' && r <= '9', account.Email)
			}
		}
	})

	t.Run("非法前缀被拒绝", func(t *testing.T) {
		svc, _ := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("invalid prefix must not reach upstream")
		})

		_, err := svc.Generate(context.Background(), testAdmin(), GenerateInput{Prefix: "has space"})
		assert.ErrorIs(t, err, ErrInvalidPrefix)

		_, err = svc.Generate(context.Background(), testAdmin(), GenerateInput{Prefix: "evil@"})
		assert.ErrorIs(t, err, ErrInvalidPrefix)
	})

	t.Run("撞名整批拒绝且不落任何记录", func(t *testing.T) {
		svc, store := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("colliding batch must not reach upstream")
		})

		// 占满 4 位数字的全部组合，任何候选都必然撞名
		now := time.Now().UTC()
		for i := 0; i < 10000; i++ {
			require.NoError(t, store.SaveConfig(&domain.EmailConfig{
				ID:           uuid.New().String(),
				UserID:       "seed",
				TargetEmail:  fmt.Sprintf("%04d@dynmsl.com", i),
				Source:       domain.SourceImport,
				ShareType:    domain.ShareTypeHTML,
				DurationDays: 1,
				MaxCount:     1,
				ExpiresAt:    now.Add(24 * time.Hour),
				CreatedAt:    now,
				UpdatedAt:    now,
			}))
		}

		admin := testAdmin()
		_, err := svc.Generate(context.Background(), admin, GenerateInput{
			CharType:   "number",
			CharLength: 4,
			Count:      3,
		})
		assert.ErrorIs(t, err, ErrDuplicateEmails)

		var dup *DuplicateEmailsError
		require.ErrorAs(t, err, &dup)
		assert.Len(t, dup.Duplicates, 3)
		for _, email := range dup.Duplicates {
			assert.Contains(t, email, "@dynmsl.com")
		}

		tasks, err := svc.ListTasks(admin)
		require.NoError(t, err)
		assert.Empty(t, tasks)

		mine, err := store.ListConfigsByUserID(admin.ID)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})

	t.Run("零值参数使用默认值", func(t *testing.T) {
		svc, _ := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true}`))
		})

		task, err := svc.Generate(context.Background(), testAdmin(), GenerateInput{})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultBatchCount, task.Count)
		assert.Equal(t, domain.DefaultCharLength, task.CharLength)
		assert.Equal(t, domain.CharTypeEnglish, task.CharType)
		assert.Equal(t, domain.DefaultDurationDays, task.DurationDays)
		assert.Equal(t, domain.DefaultMaxCount, task.MaxCount)
	})
}

func TestBatchService_Tasks(t *testing.T) {
	svc, _ := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	admin := testAdmin()

	task, err := svc.Generate(context.Background(), admin, GenerateInput{Count: 2})
	require.NoError(t, err)

	t.Run("所有者可以查看任务", func(t *testing.T) {
		got, err := svc.GetTask(admin, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
	})

	t.Run("其他用户不能查看任务", func(t *testing.T) {
		other := &domain.User{ID: "other", Username: "other"}
		_, err := svc.GetTask(other, task.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("匿名分享视图不做归属检查", func(t *testing.T) {
		got, err := svc.GetTaskPublic(task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Len(t, got.GeneratedAccounts, 2)

		_, err = svc.GetTaskPublic("missing-task")
		assert.Error(t, err)
	})

	t.Run("任务列表按用户隔离", func(t *testing.T) {
		tasks, err := svc.ListTasks(admin)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)

		tasks, err = svc.ListTasks(&domain.User{ID: "other"})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

// brokenConfigStore 模拟配置落库失败的存储层。
type brokenConfigStore struct {
	*memory.Store
}

func (s *brokenConfigStore) SaveConfig(*domain.EmailConfig) error {
	return errors.New("disk full")
}

func TestBatchService_GenerateStorageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(server.Close)

	store := memory.NewStore()
	cfg := testConfig(server.URL)
	settings := NewSettingsService(store, cfg, zap.NewNop())
	svc := NewBatchService(store, &brokenConfigStore{Store: store}, settings, cfg, sharedMetrics(), zap.NewNop())

	admin := testAdmin()
	_, err := svc.Generate(context.Background(), admin, GenerateInput{Count: 2})
	require.Error(t, err)

	// 存储层失败对整个请求是致命的，任务不得以 completed 落库
	tasks, err := store.ListTasksByUserID(admin.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestBatchService_GenerateAccountsUnique(t *testing.T) {
	svc, _ := newBatchFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})

	// 4 位数字只有一万种组合，100 个账号也必须彼此不同
	accounts := svc.generateAccounts(domain.CharTypeNumber, 4, 100, "")
	seen := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		_, dup := seen[account.Email]
		assert.False(t, dup, account.Email)
		seen[account.Email] = struct{}{}
	}
}
