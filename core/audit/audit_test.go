package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/store/db"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Emit(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *memorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRingDropsOldestFirst(t *testing.T) {
	ctx := context.Background()
	l, err := New(Config{Capacity: 3})
	require.NoError(t, err)

	for i := range 5 {
		l.Record(ctx, Event{Type: LoginFailure, UserID: fmt.Sprintf("u%d", i)})
	}
	assert.Equal(t, 3, l.Len())

	recent := l.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "u4", recent[0].UserID)
	assert.Equal(t, "u3", recent[1].UserID)
	assert.Equal(t, "u2", recent[2].UserID)

	recent = l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "u4", recent[0].UserID)

	assert.Len(t, l.Recent(10), 3)
}

func TestDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	l, err := New(Config{})
	require.NoError(t, err)

	for range 1005 {
		l.Record(ctx, Event{Type: RateLimited})
	}
	assert.Equal(t, 1000, l.Len())
}

func TestRecordFillsIDAndTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, err := New(Config{}, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	l.Record(context.Background(), Event{Type: CSRFRejected})
	e := l.Recent(1)[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.Time)
}

func TestSinkFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ok := &memorySink{}
	failing := &memorySink{err: errors.New("boom")}

	var buf bytes.Buffer
	l, err := New(Config{}, WithSinks(ok, failing), WithLogger(log.NewWriter(&buf)))
	require.NoError(t, err)

	l.Record(ctx, Event{Type: LoginSuccess, UserID: "u1", Success: true})
	// a cancelled request context does not stop delivery
	cancel()
	l.Record(ctx, Event{Type: Logout, UserID: "u1", Success: true})

	assert.Eventually(t, func() bool { return ok.Len() == 2 && failing.Len() == 2 }, time.Second, 10*time.Millisecond)
	require.NoError(t, l.Close(context.Background()))
	assert.Contains(t, buf.String(), "audit sink failed")
	assert.Zero(t, l.Dropped())
}

type fakePublisher struct {
	mu    sync.Mutex
	topic string
	key   []byte
	value []byte
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestKafkaSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewKafkaSink(pub, "")

	e := Event{ID: "e1", Type: AccountLocked, UserID: "alice", Metadata: map[string]string{"locked_until": "2026-03-01T12:15:00Z"}}
	require.NoError(t, sink.Emit(context.Background(), e))

	assert.Equal(t, "authgate.audit", pub.topic)
	assert.Equal(t, []byte("alice"), pub.key)

	var got Event
	require.NoError(t, json.Unmarshal(pub.value, &got))
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.Metadata, got.Metadata)
}

func TestDBSink(t *testing.T) {
	client, err := db.New(db.SQLiteMemory())
	require.NoError(t, err)
	defer client.Close()

	sink, err := NewDBSink(client.DB())
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, uid := range []string{"alice", "bob", "alice"} {
		require.NoError(t, sink.Emit(ctx, Event{
			ID:       fmt.Sprintf("e%d", i),
			Time:     base.Add(time.Duration(i) * time.Minute),
			Type:     LoginFailure,
			UserID:   uid,
			Metadata: map[string]string{"n": fmt.Sprint(i)},
		}))
	}

	events, err := sink.Query(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, map[string]string{"n": "2"}, events[0].Metadata)

	events, err = sink.Query(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(log.NewWriter(&buf))
	require.NoError(t, sink.Emit(context.Background(), Event{ID: "e1", Type: RateLimited, IP: "10.0.0.1", Metadata: map[string]string{"class": "auth"}}))

	out := buf.String()
	assert.Contains(t, out, `"event":"rate_limited"`)
	assert.Contains(t, out, `"meta_class":"auth"`)
}
