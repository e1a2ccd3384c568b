package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{})
	for range 100 {
		require.NoError(t, rl.Allow("user1", 1024))
	}
}

func TestRateLimiter_RequestsPerMinute(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerMinute: 2})

	require.NoError(t, rl.Allow("user1", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.Allow("user1", 0))

	err := rl.Allow("user1", 0)
	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "minute", rlErr.Window)
	assert.Equal(t, 2, rlErr.Limit)
	assert.Equal(t, 50*time.Second, rlErr.RetryAfter)

	// other clients are unaffected
	require.NoError(t, rl.Allow("user2", 0))

	clock.advance(50 * time.Second)
	assert.NoError(t, rl.Allow("user1", 0))
}

func TestRateLimiter_RequestsPerHour(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerHour: 3})

	for range 3 {
		require.NoError(t, rl.Allow("user1", 0))
		clock.advance(5 * time.Minute)
	}

	var rlErr *RateLimitError
	require.True(t, errors.As(rl.Allow("user1", 0), &rlErr))
	assert.Equal(t, "hour", rlErr.Window)
	assert.Equal(t, 45*time.Minute, rlErr.RetryAfter)

	clock.advance(45 * time.Minute)
	assert.NoError(t, rl.Allow("user1", 0))
}

func TestRateLimiter_DailyRequests(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{MaxRequestsPerDay: 2})

	require.NoError(t, rl.Allow("user1", 0))
	require.NoError(t, rl.Allow("user1", 0))

	var qErr *QuotaExceededError
	require.True(t, errors.As(rl.Allow("user1", 0), &qErr))
	assert.Equal(t, "requests", qErr.Kind)
	assert.Equal(t, int64(2), qErr.Used)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), qErr.Resets)

	clock.advance(14 * time.Hour)
	assert.NoError(t, rl.Allow("user1", 0))
}

func TestRateLimiter_DailyData(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{MaxDataPerDayMB: 1})

	require.NoError(t, rl.Allow("user1", 600*1024))

	err := rl.Allow("user1", 600*1024)
	var qErr *QuotaExceededError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, "data", qErr.Kind)
	assert.Equal(t, int64(1024*1024), qErr.Limit)
	assert.Equal(t, int64(600*1024), qErr.Used)
	assert.Contains(t, err.Error(), "daily data quota exceeded")

	// a rejected request is not recorded
	assert.NoError(t, rl.Allow("user1", 400*1024))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerMinute: 10})

	require.NoError(t, rl.Allow("old", 0))
	clock.advance(20 * time.Hour)
	require.NoError(t, rl.Allow("recent", 0))
	clock.advance(5 * time.Hour)

	assert.Equal(t, 1, rl.Prune())
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "recent")
}

func TestRateLimitError_Message(t *testing.T) {
	err := &RateLimitError{Window: "minute", Limit: 5, RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, "rate limit exceeded: 5 requests per minute, retry after 2s", err.Error())
}
