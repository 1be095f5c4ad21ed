package cache

import (
	"sync"
	"time"
)

// Stats 缓存统计信息
type Stats struct {
	// 当前缓存大小
	Size int

	// 命中次数
	Hits int

	// 未命中次数
	Misses int

	// 命中率
	HitRate float64
}

// entry 缓存条目
type entry struct {
	value      interface{}
	expiry     time.Time
	lastAccess time.Time
}

// TTLCache 进程内有界TTL缓存。
// 用途：upsert去重窗口、事件幂等去重、分析冷却时间。
// 显式注入到使用方，不做包级全局；重启丢失内容不影响已持久化的聚合。
type TTLCache struct {
	data       map[string]entry
	maxEntries int
	ttl        time.Duration
	mu         sync.Mutex

	hits   int
	misses int

	onEvict func(string)
	stop    chan struct{}
	now     func() time.Time
}

// New 创建缓存并启动过期清理
func New(maxEntries int, ttl time.Duration) *TTLCache {
	c := &TTLCache{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	go c.cleanupExpired()
	return c
}

// SetEvictionCallback 设置条目淘汰回调
func (c *TTLCache) SetEvictionCallback(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// SetClock 注入时钟（测试用）
func (c *TTLCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// cleanupExpired 定期清理过期条目
func (c *TTLCache) cleanupExpired() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, e := range c.data {
				if now.After(e.expiry) {
					c.evict(key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Recent 判断key是否在TTL窗口内出现过；未出现则立即标记。
// 返回true表示应跳过本次操作（去重/冷却命中）。
func (c *TTLCache) Recent(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.data[key]; ok && now.Before(e.expiry) {
		c.hits++
		e.lastAccess = now
		c.data[key] = e
		return true
	}
	c.misses++
	c.set(key, nil, now)
	return false
}

// Seen 只读版的Recent：判断key是否在TTL窗口内，不标记。
// 标记需成功后才生效的场景用 Seen + Mark 两步。
func (c *TTLCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.data[key]; ok && now.Before(e.expiry) {
		c.hits++
		e.lastAccess = now
		c.data[key] = e
		return true
	}
	c.misses++
	return false
}

// Mark 标记key，开启一个TTL窗口
func (c *TTLCache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, nil, c.now())
}

// Get 获取缓存条目
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.data[key]
	if !ok || now.After(e.expiry) {
		c.misses++
		return nil, false
	}
	c.hits++
	e.lastAccess = now
	c.data[key] = e
	return e.value, true
}

// Set 设置缓存条目
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, c.now())
}

func (c *TTLCache) set(key string, value interface{}, now time.Time) {
	if len(c.data) >= c.maxEntries {
		c.evictOldest()
	}
	c.data[key] = entry{
		value:      value,
		expiry:     now.Add(c.ttl),
		lastAccess: now,
	}
}

// Delete 删除条目
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// evictOldest 淘汰最久未访问的条目
func (c *TTLCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, e := range c.data {
		if first || e.lastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastAccess
			first = false
		}
	}
	if oldestKey != "" {
		c.evict(oldestKey)
	}
}

// evict 删除并通知回调（调用方须持锁）
func (c *TTLCache) evict(key string) {
	delete(c.data, key)
	if c.onEvict != nil {
		c.onEvict(key)
	}
}

// GetStats 获取缓存统计信息
func (c *TTLCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Size:   len(c.data),
		Hits:   c.hits,
		Misses: c.misses,
	}
	total := c.hits + c.misses
	if total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Clear 清空缓存
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	c.hits = 0
	c.misses = 0
}

// Close 停止后台清理
func (c *TTLCache) Close() {
	close(c.stop)
}
