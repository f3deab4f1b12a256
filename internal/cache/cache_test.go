package cache

import (
	"context"
	"fmt"
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
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*ResultCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(ttl, WithClock(clock.Now)), clock
}

func TestResultCache_SetThenGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("rust async", []byte(`{"results":[]}`))

	data, ok := c.Get("rust async")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"results":[]}`), data)
}

func TestResultCache_KeyNormalization(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("  Rust Async ", []byte("v"))

	_, ok := c.Get("rust async")
	assert.True(t, ok)
	_, ok = c.Get("RUST ASYNC")
	assert.True(t, ok)
}

func TestResultCache_ExpiresAfterTTL(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("q", []byte("v"))

	clock.Advance(59 * time.Second)
	_, ok := c.Get("q")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("q")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestResultCache_ExplicitTTL(t *testing.T) {
	c, clock := newTestCache(time.Hour)
	c.Set("short", []byte("v"), 5*time.Second)

	clock.Advance(6 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestResultCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	assert.Equal(t, 1, c.Invalidate(" A "))
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Invalidate("missing"))

	assert.Equal(t, 2, c.Invalidate())
	assert.Equal(t, 0, c.Len())
}

func TestResultCache_SetIfGeneration(t *testing.T) {
	t.Run("writes when nothing was invalidated", func(t *testing.T) {
		c, _ := newTestCache(time.Minute)
		gen := c.Generation()

		assert.True(t, c.SetIfGeneration("rust", gen, []byte("fresh")))

		got, ok := c.Get("rust")
		require.True(t, ok)
		assert.Equal(t, []byte("fresh"), got)
	})

	t.Run("drops write after full invalidation", func(t *testing.T) {
		c, _ := newTestCache(time.Minute)
		gen := c.Generation()
		c.Invalidate()

		assert.False(t, c.SetIfGeneration("rust", gen, []byte("stale")))

		_, ok := c.Get("rust")
		assert.False(t, ok)
	})

	t.Run("drops write after targeted invalidation", func(t *testing.T) {
		c, _ := newTestCache(time.Minute)
		gen := c.Generation()
		c.Invalidate("go")

		assert.False(t, c.SetIfGeneration("rust", gen, []byte("stale")))
		assert.Greater(t, c.Generation(), gen)
	})
}

func TestResultCache_Sweep(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("old", []byte("1"))
	clock.Advance(30 * time.Second)
	c.Set("new", []byte("2"))
	clock.Advance(40 * time.Second)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestSweeper_ProcessJobs(t *testing.T) {
	c, clock := newTestCache(time.Second)
	c.Set("q", []byte("v"))
	clock.Advance(2 * time.Second)

	var swept int
	s := NewSweeper(c, func(removed int) { swept = removed })

	require.NoError(t, s.ProcessJobs(context.Background()))
	assert.Equal(t, 1, swept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.ProcessJobs(ctx), context.Canceled)
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("q-%d", i%4)
			for j := 0; j < 100; j++ {
				c.Set(key, []byte("v"))
				c.Get(key)
				if j%25 == 0 {
					c.Sweep()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 4)
}
