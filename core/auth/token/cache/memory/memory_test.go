package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/authgate/core/auth/token/cache"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewSessionStore(WithClock(func() time.Time { return now }))

	require.NoError(t, store.Save(ctx, &cache.Session{SessionID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, &cache.Session{SessionID: "s2", UserID: "u1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.Save(ctx, &cache.Session{SessionID: "s3", UserID: "u2", ExpiresAt: now.Add(time.Hour)}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	list, err := store.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	t.Run("expired session is not found", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, err := store.Get(ctx, "s2")
		assert.ErrorIs(t, err, cache.ErrSessionNotFound)

		list, err := store.List(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("delete checks owner", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "u2", "s1"))
		_, err := store.Get(ctx, "s1")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "u1", "s1"))
		_, err = store.Get(ctx, "s1")
		assert.ErrorIs(t, err, cache.ErrSessionNotFound)
	})

	t.Run("delete all", func(t *testing.T) {
		require.NoError(t, store.DeleteAll(ctx, "u2"))
		_, err := store.Get(ctx, "s3")
		assert.ErrorIs(t, err, cache.ErrSessionNotFound)
		assert.Zero(t, store.Len())
	})
}

func TestSessionStoreSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewSessionStore(WithClock(func() time.Time { return now }))

	for i, ttl := range []time.Duration{time.Minute, time.Minute, time.Hour} {
		require.NoError(t, store.Save(ctx, &cache.Session{
			SessionID: string(rune('a' + i)),
			UserID:    "u1",
			ExpiresAt: now.Add(ttl),
		}))
	}

	now = now.Add(10 * time.Minute)
	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len())
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session := &cache.Session{SessionID: "s1", UserID: "u1", Role: "client", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, session))

	session.Role = "admin"
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "client", got.Role)
}

func TestBlacklist(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bl := NewBlacklist(2, WithClock(func() time.Time { return now }))

	require.NoError(t, bl.Add(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, bl.Add(ctx, "b", now.Add(time.Minute)))

	ok, err := bl.Contains(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	// re-adding does not change insertion order
	require.NoError(t, bl.Add(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, bl.Add(ctx, "c", now.Add(time.Hour)))
	assert.Equal(t, 2, bl.Len())

	ok, _ = bl.Contains(ctx, "a")
	assert.False(t, ok)
	ok, _ = bl.Contains(ctx, "b")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = bl.Contains(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 1, bl.Len())

	now = now.Add(2 * time.Hour)
	n, err := bl.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, bl.Len())
}

func TestBlacklistDefaultSize(t *testing.T) {
	bl := NewBlacklist(0)
	assert.Equal(t, DefaultBlacklistSize, bl.maxSize)
}
