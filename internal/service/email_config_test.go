package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"maildash/backend/internal/domain"
	"maildash/backend/internal/storage/memory"
)

func newConfigFixture(t *testing.T) (*EmailConfigService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := testConfig("http://127.0.0.1:1")
	settings := NewSettingsService(store, cfg, zap.NewNop())
	return NewEmailConfigService(store, settings, cfg, zap.NewNop()), store
}

func testUser() *domain.User {
	return &domain.User{ID: "user-id", Username: "alice"}
}

func TestEmailConfigService_Create(t *testing.T) {
	t.Run("创建配置并套用默认值", func(t *testing.T) {
		svc, _ := newConfigFixture(t)

		config, err := svc.Create(testUser(), CreateInput{TargetEmail: "Box1@Dynmsl.com"})
		require.NoError(t, err)
		assert.Equal(t, "box1@dynmsl.com", config.TargetEmail)
		assert.Equal(t, domain.SourceImport, config.Source)
		assert.Equal(t, domain.DefaultDurationDays, config.DurationDays)
		assert.Equal(t, domain.DefaultMaxCount, config.MaxCount)
		assert.Equal(t, domain.ShareTypeHTML, config.ShareType)
		assert.True(t, config.ExpiresAt.After(time.Now()))
	})

	t.Run("超界参数压到边界", func(t *testing.T) {
		svc, _ := newConfigFixture(t)

		config, err := svc.Create(testUser(), CreateInput{
			TargetEmail:  "box2@dynmsl.com",
			DurationDays: 9999,
			MaxCount:     -5,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.MaxDurationDays, config.DurationDays)
		assert.Equal(t, domain.MinMaxCount, config.MaxCount)
	})

	t.Run("域名不符被拒绝", func(t *testing.T) {
		svc, _ := newConfigFixture(t)

		_, err := svc.Create(testUser(), CreateInput{TargetEmail: "someone@gmail.com"})
		assert.ErrorIs(t, err, ErrDomainMismatch)
	})

	t.Run("重复邮箱被拒绝", func(t *testing.T) {
		svc, _ := newConfigFixture(t)

		_, err := svc.Create(testUser(), CreateInput{TargetEmail: "box3@dynmsl.com"})
		require.NoError(t, err)

		_, err = svc.Create(testUser(), CreateInput{TargetEmail: "BOX3@dynmsl.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestEmailConfigService_Ownership(t *testing.T) {
	svc, _ := newConfigFixture(t)
	owner := testUser()
	other := &domain.User{ID: "other-id", Username: "bob"}
	admin := &domain.User{ID: "admin-id", Username: "root", IsAdmin: true}

	config, err := svc.Create(owner, CreateInput{TargetEmail: "owned@dynmsl.com"})
	require.NoError(t, err)

	t.Run("所有者与管理员可以访问", func(t *testing.T) {
		_, err := svc.Get(owner, config.ID)
		assert.NoError(t, err)

		_, err = svc.Get(admin, config.ID)
		assert.NoError(t, err)
	})

	t.Run("其他用户被拒绝", func(t *testing.T) {
		_, err := svc.Get(other, config.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		err = svc.Delete(other, config.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("批量删除不会越权", func(t *testing.T) {
		deleted, err := svc.BulkDelete(other, []string{config.ID})
		require.NoError(t, err)
		assert.Zero(t, deleted)

		deleted, err = svc.BulkDelete(owner, []string{config.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})
}

func TestEmailConfigService_Update(t *testing.T) {
	svc, _ := newConfigFixture(t)
	owner := testUser()

	config, err := svc.Create(owner, CreateInput{TargetEmail: "upd@dynmsl.com", MaxCount: 10})
	require.NoError(t, err)

	t.Run("修改有效天数重新起算过期时刻", func(t *testing.T) {
		days := 30
		updated, err := svc.Update(owner, config.ID, UpdateConfigInput{DurationDays: &days})
		require.NoError(t, err)
		assert.Equal(t, 30, updated.DurationDays)
		assert.True(t, updated.ExpiresAt.After(time.Now().AddDate(0, 0, 29)))
	})

	t.Run("重置已读取次数", func(t *testing.T) {
		updated, err := svc.Update(owner, config.ID, UpdateConfigInput{ResetReceived: true})
		require.NoError(t, err)
		assert.Zero(t, updated.ReceivedCount)
	})

	t.Run("切换分享方式", func(t *testing.T) {
		shareType := "json"
		updated, err := svc.Update(owner, config.ID, UpdateConfigInput{ShareType: &shareType})
		require.NoError(t, err)
		assert.Equal(t, domain.ShareTypeJSON, updated.ShareType)
	})
}

func TestEmailConfigService_List(t *testing.T) {
	svc, _ := newConfigFixture(t)
	owner := testUser()
	other := &domain.User{ID: "other-id", Username: "bob"}
	admin := &domain.User{ID: "admin-id", Username: "root", IsAdmin: true}

	for _, email := range []string{"l1@dynmsl.com", "l2@dynmsl.com", "l3@dynmsl.com"} {
		_, err := svc.Create(owner, CreateInput{TargetEmail: email})
		require.NoError(t, err)
	}
	_, err := svc.Create(other, CreateInput{TargetEmail: "x1@dynmsl.com"})
	require.NoError(t, err)

	t.Run("普通用户只能看到自己的配置", func(t *testing.T) {
		configs, total, err := svc.List(owner, domain.ConfigFilter{}, true)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, configs, 3)
	})

	t.Run("管理员可以查看全部", func(t *testing.T) {
		_, total, err := svc.List(admin, domain.ConfigFilter{}, true)
		require.NoError(t, err)
		assert.Equal(t, 4, total)
	})

	t.Run("分页与搜索", func(t *testing.T) {
		configs, total, err := svc.List(owner, domain.ConfigFilter{Page: 1, PageSize: 2}, false)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, configs, 2)

		configs, total, err = svc.List(owner, domain.ConfigFilter{Query: "l2"}, false)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "l2@dynmsl.com", configs[0].TargetEmail)
	})

	t.Run("单页大小有上限", func(t *testing.T) {
		_, _, err := svc.List(owner, domain.ConfigFilter{PageSize: 100000}, false)
		assert.NoError(t, err)
	})
}

func TestEmailConfigService_ExportList(t *testing.T) {
	svc, store := newConfigFixture(t)
	owner := testUser()
	admin := &domain.User{ID: "admin-id", Username: "root", IsAdmin: true}

	seed := func(userID string, n int) {
		base := time.Now().UTC()
		for i := 0; i < n; i++ {
			require.NoError(t, store.SaveConfig(&domain.EmailConfig{
				ID:           uuid.New().String(),
				UserID:       userID,
				TargetEmail:  fmt.Sprintf("%s-%04d@dynmsl.com", userID, i),
				Source:       domain.SourceImport,
				ShareType:    domain.ShareTypeHTML,
				DurationDays: 1,
				MaxCount:     1,
				ExpiresAt:    base.Add(24 * time.Hour),
				CreatedAt:    base.Add(time.Duration(i) * time.Second),
				UpdatedAt:    base,
			}))
		}
	}

	// 超过单页上限，导出必须完整返回
	seed(owner.ID, 505)
	seed("other-id", 3)

	t.Run("普通用户导出本人全量", func(t *testing.T) {
		configs, err := svc.ExportList(owner, false)
		require.NoError(t, err)
		assert.Len(t, configs, 505)
	})

	t.Run("管理员可以导出全库", func(t *testing.T) {
		configs, err := svc.ExportList(admin, true)
		require.NoError(t, err)
		assert.Len(t, configs, 508)
	})

	t.Run("管理员不带范围参数时只导出本人", func(t *testing.T) {
		configs, err := svc.ExportList(admin, false)
		require.NoError(t, err)
		assert.Empty(t, configs)
	})
}

func TestEmailConfigService_Import(t *testing.T) {
	t.Run("混合分隔符导入并去重", func(t *testing.T) {
		svc, _ := newConfigFixture(t)

		result, err := svc.Import(testUser(), ImportInput{
			Text:         "a1@dynmsl.com, a2@dynmsl.com;a3@dynmsl.com\nA1@dynmsl.com  a4@dynmsl.com",
			DurationDays: 7,
			MaxCount:     20,
			ShareType:    "json",
		})
		require.NoError(t, err)
		assert.Len(t, result.Imported, 4)
		assert.Empty(t, result.Skipped)

		for _, cfg := range result.Imported {
			assert.Equal(t, 7, cfg.DurationDays)
			assert.Equal(t, 20, cfg.MaxCount)
			assert.Equal(t, domain.ShareTypeJSON, cfg.ShareType)
		}
	})

	t.Run("域名不符与已存在的邮箱进入跳过列表", func(t *testing.T) {
		svc, _ := newConfigFixture(t)

		_, err := svc.Create(testUser(), CreateInput{TargetEmail: "dup@dynmsl.com"})
		require.NoError(t, err)

		result, err := svc.Import(testUser(), ImportInput{
			Text: "new@dynmsl.com\ndup@dynmsl.com\noutside@gmail.com",
		})
		require.NoError(t, err)
		assert.Len(t, result.Imported, 1)
		assert.Equal(t, "new@dynmsl.com", result.Imported[0].TargetEmail)

		require.Len(t, result.Skipped, 2)
		reasons := map[string]string{}
		for _, skipped := range result.Skipped {
			reasons[skipped.Email] = skipped.Reason
		}
		assert.Equal(t, "already exists", reasons["dup@dynmsl.com"])
		assert.Equal(t, "domain mismatch", reasons["outside@gmail.com"])
	})

	t.Run("没有可用邮箱时报错", func(t *testing.T) {
		svc, _ := newConfigFixture(t)

		_, err := svc.Import(testUser(), ImportInput{Text: "  \n , ; "})
		assert.ErrorIs(t, err, ErrNoEmails)
	})
}
