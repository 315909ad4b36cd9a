package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"maildash/backend/internal/storage"
	"maildash/backend/internal/storage/redis"
)

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	store  storage.Store
	redis  *redis.Client
	logger *zap.Logger
}

// NewChecker 创建健康检查器
//
// redisClient 可以为 nil（未启用 Redis 的部署）。
func NewChecker(store storage.Store, redisClient *redis.Client, logger *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		store:  store,
		redis:  redisClient,
		logger: logger,
	}
	c.addChecks()
	return c
}

// addChecks 添加健康检查
func (c *Checker) addChecks() {
	c.health.AddLivenessCheck("storage", func() error {
		return c.store.Health()
	})

	if c.redis != nil {
		c.health.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return c.redis.Ping(ctx)
		})
	}
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (c *Checker) Handler() http.Handler {
	return c.health
}
