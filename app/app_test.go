package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/authgate/core/scheduler"
	"github.com/kochabx/authgate/transport/http"
)

type fakeServer struct {
	runErr   error
	stop     chan struct{}
	once     sync.Once
	shutdown bool
}

func newFakeServer(runErr error) *fakeServer {
	return &fakeServer{runErr: runErr, stop: make(chan struct{})}
}

func (s *fakeServer) Run() error {
	if s.runErr != nil {
		return s.runErr
	}
	<-s.stop
	return nil
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.once.Do(func() {
		s.shutdown = true
		close(s.stop)
	})
	return nil
}

func startAsync(app *Application) <-chan error {
	done := make(chan error, 1)
	go func() { done <- app.Start() }()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
		return nil
	}
}

func TestInfo(t *testing.T) {
	app := New(
		WithServers(http.NewServer(":0", gin.New()), nil),
		WithClose("noop", func(context.Context) error { return nil }, 0),
		WithClose("nil", nil, 0),
	)

	info := app.Info()
	assert.Equal(t, 1, info.ServerCount)
	assert.Equal(t, 1, info.CloseCount)
	assert.False(t, info.Started)
}

func TestStopRunsCloseFuncsInOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	closer := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	srv := newFakeServer(nil)
	sweeper, err := scheduler.New(scheduler.Config{})
	require.NoError(t, err)

	app := New(
		WithServers(srv, sweeper),
		WithClose("audit", closer("audit"), time.Second),
		WithClose("db", closer("db"), time.Second),
	)
	require.NoError(t, app.RegisterClose("redis", closer("redis"), 0))

	done := startAsync(app)
	time.Sleep(50 * time.Millisecond)
	app.Stop()

	require.NoError(t, wait(t, done))
	assert.True(t, srv.shutdown)
	assert.Equal(t, []string{"audit", "db", "redis"}, order)
	assert.ErrorIs(t, app.Start(), ErrAlreadyStarted)
}

func TestServerErrorStopsOthers(t *testing.T) {
	boom := errors.New("listen failed")
	healthy := newFakeServer(nil)
	closed := false

	app := New(
		WithServers(newFakeServer(boom), healthy),
		WithClose("flag", func(context.Context) error { closed = true; return nil }, 0),
	)

	err := wait(t, startAsync(app))
	assert.ErrorIs(t, err, boom)
	assert.True(t, healthy.shutdown)
	assert.True(t, closed)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := New(WithContext(ctx), WithServers(http.NewServer("127.0.0.1:18091", gin.New())))
	assert.NoError(t, wait(t, startAsync(app)))
}

func TestAddServerAfterStart(t *testing.T) {
	app := New()
	assert.Error(t, app.AddServer(nil))
	require.NoError(t, app.AddServer(newFakeServer(nil)))

	done := startAsync(app)
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, app.AddServer(newFakeServer(nil)), ErrAlreadyStarted)
	app.Stop()
	require.NoError(t, wait(t, done))
}

func TestCloseTaskFailures(t *testing.T) {
	app := New(WithCloseTimeout(50 * time.Millisecond))
	assert.Error(t, app.RegisterClose("nil", nil, 0))
	require.NoError(t, app.RegisterClose("panic", func(context.Context) error { panic("boom") }, 0))
	require.NoError(t, app.RegisterClose("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	}, 0))
	require.NoError(t, app.RegisterClose("fails", func(context.Context) error { return errors.New("flush") }, 0))

	start := time.Now()
	errs := app.runCloseTasks()
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[0], ErrClosePanic)
	assert.ErrorIs(t, errs[1], context.DeadlineExceeded)
	assert.EqualError(t, errs[2], "fails: flush")
}
