package lru

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func withClock(now func() time.Time) Option[string, int] {
	return func(c *LRU[string, int]) {
		c.now = now
	}
}

func newCache(t *testing.T, size int, ttl time.Duration, opts ...Option[string, int]) (*LRU[string, int], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append(opts, withClock(clock.Now))
	c := New[string, int](&Config{MaxSize: size, DefaultTTL: ttl}, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestGetSetDelete(t *testing.T) {
	c, _ := newCache(t, 4, 0)

	c.Set("naruto", 1)
	v, ok := c.Get("naruto")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("naruto", 2)
	v, _ = c.Get("naruto")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	c.Delete("naruto")
	_, ok = c.Get("naruto")
	assert.False(t, ok)

	assert.Equal(t, Stats{Hits: 2, Misses: 1}, c.Stats())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c, _ := newCache(t, 2, 0, WithOnEvict(func(key string, _ int) {
		evicted = append(evicted, key)
	}))

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.Equal(t, 2, c.Len())
}

func TestTTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		advance time.Duration
		found   bool
	}{
		{name: "fresh", ttl: time.Minute, advance: 30 * time.Second, found: true},
		{name: "expired", ttl: time.Minute, advance: 2 * time.Minute, found: false},
		{name: "no expiry", ttl: 0, advance: 24 * time.Hour, found: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newCache(t, 8, tt.ttl)
			c.Set("k", 1)
			clock.Advance(tt.advance)
			_, ok := c.Get("k")
			assert.Equal(t, tt.found, ok)
		})
	}
}

func TestRemoveExpired(t *testing.T) {
	c, clock := newCache(t, 8, time.Minute)
	c.Set("short", 1)
	c.SetWithTTL("long", 2, time.Hour)

	clock.Advance(10 * time.Minute)
	c.removeExpired()
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCreate(t *testing.T) {
	c, _ := newCache(t, 8, time.Minute)

	calls := 0
	create := func() int {
		calls++
		return 42
	}
	assert.Equal(t, 42, c.GetOrCreate("k", create))
	assert.Equal(t, 42, c.GetOrCreate("k", create))
	assert.Equal(t, 1, calls)
}

func TestBackgroundCleanup(t *testing.T) {
	c := New[string, int](&Config{MaxSize: 4, DefaultTTL: 10 * time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	defer c.Close()

	c.Set("k", 1)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, c.Close())
}
