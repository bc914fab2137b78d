package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStore_SetAndGet(t *testing.T) {
	s := New[string](10)

	s.Set("key1", "value1")

	got, ok := s.Get("key1", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "value1", got)
}

func TestStore_GetMissingKey(t *testing.T) {
	s := New[string](10)

	got, ok := s.Get("nonexistent", time.Minute)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestStore_OverwriteExistingKey(t *testing.T) {
	s := New[string](10)

	s.Set("key1", "original")
	s.Set("key1", "updated")

	got, ok := s.Get("key1", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "updated", got)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ZeroTTLIsAlwaysExpired(t *testing.T) {
	s := New[string](10)

	s.Set("key1", "value1")

	_, ok := s.Get("key1", 0)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry should be dropped on read")
}

func TestStore_TTLBoundary(t *testing.T) {
	clock := newFakeClock()
	s := New[string](10, WithClock(clock.Now))
	ttl := 10 * time.Second

	s.Set("key1", "value1")

	clock.Advance(5 * time.Second)
	got, ok := s.Get("key1", ttl)
	require.True(t, ok, "entry should be fresh before ttl elapses")
	assert.Equal(t, "value1", got)

	clock.Advance(5*time.Second - time.Nanosecond)
	_, ok = s.Get("key1", ttl)
	assert.True(t, ok, "entry should be fresh just before t0+ttl")

	clock.Advance(time.Nanosecond)
	_, ok = s.Get("key1", ttl)
	assert.False(t, ok, "entry must be absent at exactly t0+ttl")
}

func TestStore_ReadDoesNotRefresh(t *testing.T) {
	clock := newFakeClock()
	s := New[string](10, WithClock(clock.Now))

	s.Set("key1", "value1")
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		_, ok := s.Get("key1", 10*time.Second)
		require.True(t, ok)
	}

	clock.Advance(5 * time.Second)
	_, ok := s.Get("key1", 10*time.Second)
	assert.False(t, ok, "reads must not extend the entry lifetime")
}

func TestStore_PerCallTTL(t *testing.T) {
	clock := newFakeClock()
	s := New[string](10, WithClock(clock.Now))

	s.Set("feed", "f")
	s.Set("post:a", "p")
	clock.Advance(10 * time.Minute)

	_, ok := s.Get("feed", 5*time.Minute)
	assert.False(t, ok)
	_, ok = s.Get("post:a", 30*time.Minute)
	assert.True(t, ok)
}

func TestStore_NeverExceedsMaxSize(t *testing.T) {
	s := New[int](10)

	for i := 0; i < 95; i++ {
		s.Set(fmt.Sprintf("key%d", i), i)
		assert.LessOrEqual(t, s.Len(), 10)
	}
}

func TestStore_EvictsOldestTenPercent(t *testing.T) {
	clock := newFakeClock()
	s := New[int](20, WithClock(clock.Now))

	for i := 0; i < 20; i++ {
		s.Set(fmt.Sprintf("key%d", i), i)
		clock.Advance(time.Second)
	}

	s.Set("newest", 99)

	assert.Equal(t, 19, s.Len())
	for i := 0; i < 2; i++ {
		_, ok := s.Get(fmt.Sprintf("key%d", i), time.Hour)
		assert.False(t, ok, "key%d should have been evicted", i)
	}
	for i := 2; i < 20; i++ {
		_, ok := s.Get(fmt.Sprintf("key%d", i), time.Hour)
		assert.True(t, ok, "key%d should survive eviction", i)
	}
	got, ok := s.Get("newest", time.Hour)
	require.True(t, ok)
	assert.Equal(t, 99, got)
}

func TestStore_EvictsAtLeastOne(t *testing.T) {
	s := New[string](3)

	for i := 0; i < 3; i++ {
		s.Set(fmt.Sprintf("key%d", i), "v")
	}
	s.Set("key3", "v")

	assert.Equal(t, 3, s.Len())
	_, ok := s.Get("key0", time.Hour)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Stats().Evictions)
}

func TestStore_EvictionUsesInsertionOrderOnTies(t *testing.T) {
	clock := newFakeClock() // never advanced: every entry shares storedAt
	s := New[int](10, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		s.Set(fmt.Sprintf("key%d", i), i)
	}
	s.Set("key10", 10)

	_, ok := s.Get("key0", time.Hour)
	assert.False(t, ok)
	_, ok = s.Get("key1", time.Hour)
	assert.True(t, ok)
}

func TestStore_EvictionIgnoresReadRecency(t *testing.T) {
	clock := newFakeClock()
	s := New[int](10, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		s.Set(fmt.Sprintf("key%d", i), i)
		clock.Advance(time.Second)
	}
	// Reading key0 must not save it.
	_, ok := s.Get("key0", time.Hour)
	require.True(t, ok)

	s.Set("key10", 10)

	_, ok = s.Get("key0", time.Hour)
	assert.False(t, ok)
}

func TestStore_ReplaceDoesNotEvict(t *testing.T) {
	s := New[int](5)

	for i := 0; i < 5; i++ {
		s.Set(fmt.Sprintf("key%d", i), i)
	}
	s.Set("key4", 40)

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, uint64(0), s.Stats().Evictions)
}

func TestStore_DefaultMaxSize(t *testing.T) {
	s := New[int](0)
	assert.Equal(t, DefaultMaxSize, s.Stats().MaxSize)
}

func TestStore_StatsAndClear(t *testing.T) {
	s := New[string](10)

	s.Set("a", "1")
	s.Set("b", "2")
	s.Get("a", time.Minute)
	s.Get("missing", time.Minute)
	s.Get("b", 0)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(1), stats.Expirations)

	assert.Equal(t, 1, s.Clear())
	assert.Equal(t, 0, s.Len())
}

func TestStore_Delete(t *testing.T) {
	s := New[string](10)

	s.Set("a", "1")
	s.Delete("a")

	_, ok := s.Get("a", time.Minute)
	assert.False(t, ok)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New[int](50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-%d", g, i%70)
				s.Set(key, i)
				s.Get(key, time.Minute)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, s.Len(), 50)
}
