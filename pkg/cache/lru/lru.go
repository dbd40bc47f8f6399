package lru

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/util/conc"
)

// Cache 通用缓存接口
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	SetWithTTL(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
	Close() error
}

var _ Cache[string, int] = (*LRU[string, int])(nil)

// Config LRU 配置
type Config struct {
	MaxSize int `mapstructure:"max_size" json:"max_size" validate:"gte=1"`
	// DefaultTTL 为 0 表示不过期
	DefaultTTL time.Duration `mapstructure:"default_ttl" json:"default_ttl"`
	// CleanupInterval 为 0 时不启动后台清理，过期条目在访问时惰性删除
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxSize:         1024,
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Stats 命中统计
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// LRU 带 TTL 的内存 LRU 缓存
type LRU[K comparable, V any] struct {
	config *Config
	cache  *list.List
	items  map[K]*list.Element
	mu     sync.RWMutex
	pool   *conc.Pool[struct{}]
	stopCh chan struct{}
	once   sync.Once

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	onEvict func(key K, value V)
	now     func() time.Time
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Option LRU 选项
type Option[K comparable, V any] func(*LRU[K, V])

// WithOnEvict 淘汰回调，在持有锁时调用，回调内不可访问缓存
func WithOnEvict[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.onEvict = fn
	}
}

// New 创建 LRU 缓存，cfg 为 nil 时使用默认配置
func New[K comparable, V any](cfg *Config, opts ...Option[K, V]) *LRU[K, V] {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}

	c := &LRU[K, V]{
		config: cfg,
		cache:  list.New(),
		items:  make(map[K]*list.Element),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.CleanupInterval > 0 {
		c.pool = conc.NewPool[struct{}](1)
		c.startCleanup()
	}
	return c
}

func (c *LRU[K, V]) startCleanup() {
	c.pool.Submit(func() (struct{}, error) {
		ticker := time.NewTicker(c.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.removeExpired()
			case <-c.stopCh:
				return struct{}{}, nil
			}
		}
	})
}

func (c *LRU[K, V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for e := c.cache.Back(); e != nil; {
		prev := e.Prev()
		if e.Value.(*entry[K, V]).expired(now) {
			c.removeElement(e)
		}
		e = prev
	}
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[K, V])
		if !ent.expired(c.now()) {
			c.cache.MoveToFront(elem)
			c.hits.Add(1)
			return ent.value, true
		}
		c.removeElement(elem)
	}

	c.misses.Add(1)
	var zero V
	return zero, false
}

// Set 使用默认 TTL 写入
func (c *LRU[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.config.DefaultTTL)
}

// SetWithTTL ttl 为 0 表示不过期
func (c *LRU[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value, ttl)
}

// GetOrCreate 原子获取或创建
func (c *LRU[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[K, V])
		if !ent.expired(c.now()) {
			c.cache.MoveToFront(elem)
			c.hits.Add(1)
			return ent.value
		}
		c.removeElement(elem)
	}

	c.misses.Add(1)
	value := create()
	c.put(key, value, c.config.DefaultTTL)
	return value
}

func (c *LRU[K, V]) put(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		c.cache.MoveToFront(elem)
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		return
	}

	elem := c.cache.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	for c.cache.Len() > c.config.MaxSize {
		if oldest := c.cache.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions.Add(1)
		}
	}
}

func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *LRU[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

// Stats 返回命中统计快照
func (c *LRU[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close 停止后台清理，可重复调用
func (c *LRU[K, V]) Close() error {
	c.once.Do(func() {
		close(c.stopCh)
		if c.pool != nil {
			c.pool.Release()
		}
	})
	return nil
}

func (c *LRU[K, V]) removeElement(elem *list.Element) {
	c.cache.Remove(elem)
	ent := elem.Value.(*entry[K, V])
	delete(c.items, ent.key)
	if c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
}
