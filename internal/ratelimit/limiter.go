package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"maildash/backend/internal/storage/redis"
)

// Limiter 按调用方标识（通常是客户端 IP）限制请求速率。
type Limiter interface {
	// Allow 判断本次请求是否放行
	Allow(ctx context.Context, key string) bool
}

// RedisLimiter 基于 Redis 固定窗口计数的限流器。
//
// 多实例部署时共享计数。Redis 调用失败时放行并记录日志，
// 限流是保护措施而不是正确性前提。
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	log    *zap.Logger
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Allow 判断本次请求是否放行
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	count, err := l.client.IncrWindow(ctx, "ratelimit:share:"+key, l.window)
	if err != nil {
		l.log.Warn("rate limit counter unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}
	return count <= int64(l.limit)
}

// LocalLimiter 进程内令牌桶限流器，未配置 Redis 时的回退实现。
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	limit    rate.Limit
	burst    int
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter 创建进程内限流器
//
// limit 与 window 换算为令牌桶速率，burst 取窗口内允许的请求数。
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	l := &LocalLimiter{
		limiters: make(map[string]*localEntry),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
	}
	go l.cleanup()
	return l
}

// Allow 判断本次请求是否放行
func (l *LocalLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// cleanup 定期清理长时间未出现的调用方，防止 map 无界增长
func (l *LocalLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for key, e := range l.limiters {
			if time.Since(e.lastSeen) > 10*time.Minute {
				delete(l.limiters, key)
			}
		}
		l.mu.Unlock()
	}
}
