package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeredis "github.com/kochabx/authgate/store/redis"
)

func TestRulesDefaults(t *testing.T) {
	cfg := Config{Auth: Rule{Limit: 10}}
	rules := cfg.Rules()
	assert.Equal(t, Rule{Limit: 100, Window: 15 * time.Minute}, rules[General])
	assert.Equal(t, Rule{Limit: 10, Window: 15 * time.Minute}, rules[Auth])
	assert.Equal(t, Rule{Limit: 60, Window: time.Minute}, rules[API])
}

func TestMemorySlidingWindow(t *testing.T) {
	ctx := context.Background()
	lim := NewMemory(Rule{Limit: 3, Window: time.Minute})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{0, 10 * time.Second, 20 * time.Second} {
		d, err := lim.Allow(ctx, "k", start.Add(offset))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := lim.Allow(ctx, "k", start.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// the first request leaves the window
	d, err = lim.Allow(ctx, "k", start.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = lim.Allow(ctx, "k", start.Add(time.Minute+time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 9*time.Second, d.RetryAfter)

	// other keys are independent
	d, err = lim.Allow(ctx, "other", start.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryRejectedRequestsAreNotCounted(t *testing.T) {
	ctx := context.Background()
	lim := NewMemory(Rule{Limit: 1, Window: time.Minute})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d, _ := lim.Allow(ctx, "k", start)
	require.True(t, d.Allowed)
	for i := 1; i < 60; i++ {
		d, _ = lim.Allow(ctx, "k", start.Add(time.Duration(i)*time.Second))
		require.False(t, d.Allowed)
	}
	d, _ = lim.Allow(ctx, "k", start.Add(time.Minute))
	assert.True(t, d.Allowed)
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	lim := NewMemory(Rule{Limit: 5, Window: time.Minute})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _ = lim.Allow(ctx, "a", start)
	_, _ = lim.Allow(ctx, "b", start.Add(50*time.Second))

	n, err := lim.Sweep(ctx, start.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, lim.Len())
}

func TestSetSeparatesClasses(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	set := NewMemorySet(Config{}, WithClock(func() time.Time { return now }))

	for range 5 {
		d, err := set.Allow(ctx, Auth, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := set.Allow(ctx, Auth, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = set.Allow(ctx, General, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 99, d.Remaining)

	d, err = set.Allow(ctx, Auth, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = set.Allow(ctx, Class("unknown"), "10.0.0.1")
	assert.Error(t, err)

	now = now.Add(time.Hour)
	n, err := set.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRedisSlidingWindow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client, err := storeredis.New(ctx, storeredis.Single(mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	lim := NewRedis(client, "test", Rule{Limit: 3, Window: time.Minute})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{0, 10 * time.Second, 20 * time.Second} {
		d, err := lim.Allow(ctx, "auth:10.0.0.1", start.Add(offset))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := lim.Allow(ctx, "auth:10.0.0.1", start.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	members, err := mr.ZMembers("test:rate:auth:10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, members, 3)

	d, err = lim.Allow(ctx, "auth:10.0.0.1", start.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisSet(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client, err := storeredis.New(ctx, storeredis.Single(mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	set := NewRedisSet(client, "", Config{API: Rule{Limit: 1, Window: time.Minute}})
	d, err := set.Allow(ctx, API, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, mr.Exists("authgate:rate:api:10.0.0.1"))

	d, err = set.Allow(ctx, API, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestSetDisabled(t *testing.T) {
	ctx := context.Background()
	set := NewMemorySet(Config{Disabled: true})

	for range 10 {
		d, err := set.Allow(ctx, Auth, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	_, err := set.Allow(ctx, Class("unknown"), "10.0.0.1")
	assert.Error(t, err)
}
