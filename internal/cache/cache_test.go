package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGet_FreshAndStale(t *testing.T) {
	clk := newFakeClock()
	c := New[string, float64](60*time.Second, WithClock[string, float64](clk.Now))

	c.Put("AAPL", 190.5)

	v, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 190.5, v)

	// Just inside the TTL window.
	clk.Advance(59 * time.Second)
	_, ok = c.Get("AAPL")
	assert.True(t, ok)

	// At exactly TTL the entry stops being fresh but still exists.
	clk.Advance(1 * time.Second)
	_, ok = c.Get("AAPL")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	v, ok = c.GetStale("AAPL")
	require.True(t, ok)
	assert.Equal(t, 190.5, v)
}

func TestGetMany_ReturnsFreshSubsetOnly(t *testing.T) {
	clk := newFakeClock()
	c := New[string, int](60*time.Second, WithClock[string, int](clk.Now))

	c.Put("AAPL", 1)
	clk.Advance(45 * time.Second)
	c.Put("MSFT", 2)
	clk.Advance(30 * time.Second) // AAPL now 75s old, MSFT 30s old

	got := c.GetMany([]string{"AAPL", "MSFT", "NVDA"})
	assert.Equal(t, map[string]int{"MSFT": 2}, got)
}

func TestPut_OverwriteRestartsTTL(t *testing.T) {
	clk := newFakeClock()
	c := New[string, int](60*time.Second, WithClock[string, int](clk.Now))

	c.Put("AAPL", 1)
	clk.Advance(59 * time.Second)
	c.Put("AAPL", 2)
	clk.Advance(59 * time.Second)

	v, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestZeroTTL_NeverExpires(t *testing.T) {
	clk := newFakeClock()
	c := New[string, string](0, WithClock[string, string](clk.Now))

	c.Put("alice.example.com", "did:plc:abc123")
	clk.Advance(1000 * time.Hour)

	v, ok := c.Get("alice.example.com")
	require.True(t, ok)
	assert.Equal(t, "did:plc:abc123", v)
}

func TestGet_MissingKey(t *testing.T) {
	c := New[string, int](time.Minute)
	_, ok := c.Get("nope")
	assert.False(t, ok)
	_, ok = c.GetStale("nope")
	assert.False(t, ok)
}
