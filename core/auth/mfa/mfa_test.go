package mfa

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeredis "github.com/kochabx/authgate/store/redis"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

func newTestManager(t *testing.T, store Store, now *time.Time) *Manager {
	t.Helper()
	m, err := New(Config{}, store, WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return m
}

func TestCreateChallengeFormat(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := newTestManager(t, nil, &now)

	for range 50 {
		code, err := m.CreateChallenge(ctx, "u1")
		require.NoError(t, err)
		assert.Regexp(t, sixDigits, code)
	}
}

func TestVerifyChallengeSuccessDeletes(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore()
	m := newTestManager(t, store, &now)

	code, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)

	ok, err := m.VerifyChallenge(ctx, "u1", code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, store.Len())

	// single use
	ok, err = m.VerifyChallenge(ctx, "u1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyChallengeAttemptCap(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := newTestManager(t, nil, &now)

	code, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for range 3 {
		ok, err := m.VerifyChallenge(ctx, "u1", wrong)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// the fourth call exceeds the cap even with the right code
	ok, err := m.VerifyChallenge(ctx, "u1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyChallengeThirdAttemptCanSucceed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := newTestManager(t, nil, &now)

	code, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for range 2 {
		ok, err := m.VerifyChallenge(ctx, "u1", wrong)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := m.VerifyChallenge(ctx, "u1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyWith(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore()
	m := newTestManager(t, store, &now)

	calls := 0
	match := func(string) bool { calls++; return calls == 2 }

	// no pending challenge: match is never consulted
	ok, err := m.VerifyWith(ctx, "u1", match)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, calls)

	_, err = m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)

	ok, err = m.VerifyWith(ctx, "u1", match)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	ok, err = m.VerifyWith(ctx, "u1", match)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, store.Len())
	assert.Equal(t, 2, calls)
}

func TestVerifyChallengeExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	m := newTestManager(t, store, &now)

	code, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)

	now = now.Add(5*time.Minute + time.Second)
	ok, err := m.VerifyChallenge(ctx, "u1", code)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestCreateChallengeOverwrites(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := newTestManager(t, nil, &now)

	first, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)
	second, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)

	if first != second {
		ok, err := m.VerifyChallenge(ctx, "u1", first)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := m.VerifyChallenge(ctx, "u1", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	m := newTestManager(t, store, &now)

	_, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = m.CreateChallenge(ctx, "u2")
	require.NoError(t, err)

	now = now.Add(4*time.Minute + time.Second)
	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client, err := storeredis.New(ctx, storeredis.Single(mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	m, err := New(Config{}, NewRedisStore(client, "test"))
	require.NoError(t, err)

	code, err := m.CreateChallenge(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:mfa:u1"))
	assert.Equal(t, code, mr.HGet("test:mfa:u1", "code"))

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	ok, err := m.VerifyChallenge(ctx, "u1", wrong)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "1", mr.HGet("test:mfa:u1", "attempts"))

	ok, err = m.VerifyChallenge(ctx, "u1", code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("test:mfa:u1"))

	_, err = m.CreateChallenge(ctx, "u2")
	require.NoError(t, err)
	mr.FastForward(6 * time.Minute)
	assert.False(t, mr.Exists("test:mfa:u2"))
}
