package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	require.True(t, c.Set("k", "v"))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestValuesStoredByReference(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	original := []int{1, 2, 3}
	c.Set("slice", original)

	got, ok := c.Get("slice")
	require.True(t, ok)
	assert.Equal(t, &original[0], &got.([]int)[0], "no defensive copy")
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("short", "v", 30*time.Millisecond)

	_, ok := c.Get("short")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("short")
	assert.False(t, ok, "expired entry must be invisible before any sweep")
}

func TestGetAllSkipsExpired(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("live", 1)
	c.Set("dead", 2, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	all := c.GetAll()
	assert.Equal(t, map[string]interface{}{"live": 1}, all)
}

func TestDeleteAndFlush(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"), "second delete reports absence")

	c.Flush()
	assert.Empty(t, c.GetAll())
}

func TestStats(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("nope")

	st := c.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestOverwriteResetsValue(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("k", "old")
	c.Set("k", "new")

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestZeroValueNeverPanics(t *testing.T) {
	// A zero-value cache has a nil entry map; every operation must degrade
	// to a neutral result instead of panicking.
	var c Cache

	assert.NotPanics(t, func() {
		assert.False(t, c.Set("k", "v"), "set on broken cache reports failure")

		_, ok := c.Get("k")
		assert.False(t, ok)

		assert.Empty(t, c.GetAll())
		assert.False(t, c.Delete("k"))
		c.Flush()
	})
}

func TestDefaultTTLFallback(t *testing.T) {
	c := New(0)
	defer c.Close()

	assert.Equal(t, DefaultTTL, c.defaultTTL)
}

func TestCloseKeepsCacheUsable(t *testing.T) {
	c := New(time.Minute)
	c.Close()
	c.Close() // idempotent

	require.True(t, c.Set("k", "v"))
	_, ok := c.Get("k")
	assert.True(t, ok)
}
