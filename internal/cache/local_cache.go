package cache

import (
	"sync"
	"time"
)

// Local 进程内 TTL 缓存。
//
// 用于系统设置快照这类读多写少的小对象：sync.Map 无锁读取，
// 写入方在更新持久层后调用 Delete 立即失效，TTL 只作为兜底。
type Local struct {
	data sync.Map
	ttl  time.Duration
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewLocal 创建本地缓存，ttl 为默认过期时间。
func NewLocal(ttl time.Duration) *Local {
	return &Local{ttl: ttl}
}

// Get 获取缓存值；不存在或已过期返回 false。
func (c *Local) Get(key string) (interface{}, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	e := val.(*entry)
	if time.Now().After(e.expiresAt) {
		c.data.Delete(key)
		return nil, false
	}

	return e.value, true
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间。
func (c *Local) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.data.Store(key, &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Delete 删除缓存值（写路径上的显式失效）。
func (c *Local) Delete(key string) {
	c.data.Delete(key)
}
