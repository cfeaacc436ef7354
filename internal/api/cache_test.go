package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := NewResponseCache(4, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("q1", "answer")
	got, ok := c.Get("q1")
	require.True(t, ok)
	assert.Equal(t, "answer", got)
}

func TestCacheExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewResponseCache(4, time.Minute)
	c.nowFunc = func() time.Time { return now }

	c.Set("q1", "answer")

	now = now.Add(59 * time.Second)
	_, ok := c.Get("q1")
	assert.True(t, ok, "entry within TTL must survive")

	now = now.Add(2 * time.Second)
	_, ok = c.Get("q1")
	assert.False(t, ok, "entry past TTL must be dropped on read")
}

func TestCacheEvictsOldest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewResponseCache(3, time.Hour)
	c.nowFunc = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("q%d", i), i)
		now = now.Add(time.Second)
	}

	// Cache is full; the next insert evicts the oldest entry (q0).
	c.Set("q3", 3)

	_, ok := c.Get("q0")
	assert.False(t, ok, "oldest entry should have been evicted")
	for _, key := range []string{"q1", "q2", "q3"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "entry %s should survive", key)
	}
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	c := NewResponseCache(2, time.Hour)
	c.Set("q1", 1)
	c.Set("q2", 2)

	// Overwriting an existing key must not evict anything.
	c.Set("q1", 10)

	got, ok := c.Get("q1")
	require.True(t, ok)
	assert.Equal(t, 10, got)
	_, ok = c.Get("q2")
	assert.True(t, ok)
}
