package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache[string, int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("answer", 42, time.Minute)
	value, ok := c.Get("answer")
	require.True(t, ok)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, string]().(*ttlCache[string, string])

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("k", "v", 30*time.Second)

	base = base.Add(29 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	base = base.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, string]().(*ttlCache[string, string])

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("k", "v", 0)
	base = base.Add(24 * time.Hour)

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("k", 1, time.Minute)
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestStoreLocalFallback(t *testing.T) {
	store := NewStore(nil, nil)

	type payload struct {
		Name string `json:"name"`
	}

	store.Set(t.Context(), "bootstrap", payload{Name: "edge"})

	var out payload
	require.True(t, store.Get(t.Context(), "bootstrap", &out))
	assert.Equal(t, "edge", out.Name)

	assert.False(t, store.Get(t.Context(), "missing", &out))
}

func TestStoreNilReceiver(t *testing.T) {
	var store *Store
	store.Set(t.Context(), "k", "v")

	var out string
	assert.False(t, store.Get(t.Context(), "k", &out))
}
