package simplefin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRawResponseCache_PopOnce(t *testing.T) {
	c := NewRawResponseCache(5 * time.Minute)
	c.Store("run-1", []byte(`{"accounts":[]}`))

	data, ok := c.Pop("run-1")
	assert.True(t, ok)
	assert.Equal(t, `{"accounts":[]}`, string(data))

	_, ok = c.Pop("run-1")
	assert.False(t, ok)
	_, ok = c.Pop("never-stored")
	assert.False(t, ok)
}

func TestRawResponseCache_Expiry(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewRawResponseCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	c.Store("old", []byte("a"))
	now = now.Add(6 * time.Minute)

	_, ok := c.Pop("old")
	assert.False(t, ok, "expired entry must not be returned")

	c.Store("stale", []byte("b"))
	now = now.Add(6 * time.Minute)
	c.Store("fresh", []byte("c"))
	assert.Equal(t, 1, c.Len(), "insert sweeps expired entries")

	data, ok := c.Pop("fresh")
	assert.True(t, ok)
	assert.Equal(t, "c", string(data))
}

func TestRawResponseCache_StoreReplaces(t *testing.T) {
	c := NewRawResponseCache(time.Minute)
	c.Store("run-1", []byte("first"))
	c.Store("run-1", []byte("second"))

	data, ok := c.Pop("run-1")
	assert.True(t, ok)
	assert.Equal(t, "second", string(data))
}
