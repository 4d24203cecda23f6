package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingJob(n int) (*int, SweepFunc) {
	calls := new(int)
	return calls, func(context.Context) (int, error) {
		*calls++
		return n, nil
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "@every 1m", s.cfg.Spec)
	assert.Equal(t, 30*time.Second, s.cfg.Timeout)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(Config{Spec: "every minute"})
	assert.Error(t, err)
}

func TestRegisterDuplicate(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	_, job := countingJob(0)
	require.NoError(t, s.Register("tokens", job))
	assert.ErrorIs(t, s.Register("tokens", job), ErrDuplicateJob)
}

func TestRunOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	s, err := New(Config{}, WithMetrics(m))
	require.NoError(t, err)

	calls, job := countingJob(3)
	require.NoError(t, s.Register("tokens", job))
	require.NoError(t, s.Register("broken", SweepFunc(func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})))

	results := s.RunOnce(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "broken", results[0].Job)
	assert.EqualError(t, results[0].Err, "boom")
	assert.Equal(t, "tokens", results[1].Job)
	assert.Equal(t, 3, results[1].Removed)
	assert.Equal(t, 1, *calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("tokens", statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("broken", statusFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.removed.WithLabelValues("tokens")))
}

func TestRunOnceAppliesTimeout(t *testing.T) {
	s, err := New(Config{Timeout: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, s.Register("slow", SweepFunc(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})))

	results := s.RunOnce(context.Background())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestRunAndShutdown(t *testing.T) {
	s, err := New(Config{Spec: "@every 1s"})
	require.NoError(t, err)

	ran := make(chan struct{}, 1)
	require.NoError(t, s.Register("tick", SweepFunc(func(context.Context) (int, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 0, nil
	})))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("sweep did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-errCh)
	// 重复关闭无副作用
	assert.NoError(t, s.Shutdown(ctx))
}

func newLock(t *testing.T) (*miniredis.Miniredis, *DistLock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewDistLock(client, "test")
}

func TestDistLock(t *testing.T) {
	mr, l := newLock(t)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "job", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("test:lock:job"))

	ok, err = l.Acquire(ctx, "job", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 非持有者不能释放或续期
	ok, err = l.Release(ctx, "job", "b")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = l.Extend(ctx, "job", "b", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Extend(ctx, "job", "a", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Release(ctx, "job", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	locked, err := l.IsLocked(ctx, "job")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestDistLockExpires(t *testing.T) {
	mr, l := newLock(t)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "job", "a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	ok, err = l.Acquire(ctx, "job", "b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	_, l := newLock(t)
	ctx := context.Background()

	s, err := New(Config{}, WithLocker(l))
	require.NoError(t, err)
	calls, job := countingJob(1)
	require.NoError(t, s.Register("tokens", job))

	ok, err := l.Acquire(ctx, "sweep:tokens", "other-instance", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	results := s.RunOnce(ctx)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 0, *calls)

	_, err = l.Release(ctx, "sweep:tokens", "other-instance")
	require.NoError(t, err)

	results = s.RunOnce(ctx)
	assert.False(t, results[0].Skipped)
	assert.Equal(t, 1, *calls)

	// 执行后锁已释放
	locked, err := l.IsLocked(ctx, "sweep:tokens")
	require.NoError(t, err)
	assert.False(t, locked)
}
