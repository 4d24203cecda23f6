// Package audit 记录安全相关事件。
//
// 内存中保留最近 N 条（超出时丢弃最旧的），并通过 ants 协程池异步
// 分发到持久化 Sink。Sink 失败只记录日志，不影响调用方。
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/authgate/core/tag"
	"github.com/kochabx/authgate/core/validator"
	"github.com/kochabx/authgate/log"
)

// Sink 事件的持久化目标
type Sink interface {
	Name() string
	Emit(ctx context.Context, e Event) error
}

// Config 审计配置
type Config struct {
	Capacity int `json:"capacity" mapstructure:"capacity" default:"1000" validate:"min=1"`
	// 分发协程上限，全部繁忙时新事件不再分发，只计入 Dropped
	Workers int `json:"workers" mapstructure:"workers" default:"32" validate:"min=1"`
	// 单个 Sink 写入超时
	EmitTimeout time.Duration `json:"emit_timeout" mapstructure:"emit_timeout" default:"5s"`
}

// Log 审计日志
type Log struct {
	mu    sync.RWMutex
	ring  []Event
	start int
	size  int

	sinks   []Sink
	pool    *ants.Pool
	timeout time.Duration
	dropped atomic.Uint64
	logger  *log.Logger
	now     func() time.Time
}

// Option 选项
type Option func(*Log)

// WithSinks 添加 Sink
func WithSinks(sinks ...Sink) Option {
	return func(l *Log) { l.sinks = append(l.sinks, sinks...) }
}

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New 创建审计日志
func New(cfg Config, opts ...Option) (*Log, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply audit defaults: %w", err)
	}
	if err := validator.Validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("audit config: %w", err)
	}

	l := &Log{
		ring:    make([]Event, cfg.Capacity),
		timeout: cfg.EmitTimeout,
		logger:  log.G,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if len(l.sinks) > 0 {
		pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(true))
		if err != nil {
			return nil, fmt.Errorf("audit: create pool: %w", err)
		}
		l.pool = pool
	}
	return l, nil
}

// Record 追加事件并异步分发，ID 与时间为空时自动填充
func (l *Log) Record(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = l.now()
	}

	l.mu.Lock()
	idx := (l.start + l.size) % len(l.ring)
	l.ring[idx] = e
	if l.size < len(l.ring) {
		l.size++
	} else {
		l.start = (l.start + 1) % len(l.ring)
	}
	l.mu.Unlock()

	if !e.Success {
		l.logger.Info().
			Str("event", string(e.Type)).
			Str("user_id", e.UserID).
			Str("ip", e.IP).
			Str("reason", e.Reason).
			Msg("security event")
	}
	l.dispatch(context.WithoutCancel(ctx), e)
}

func (l *Log) dispatch(ctx context.Context, e Event) {
	if l.pool == nil {
		return
	}
	for _, sink := range l.sinks {
		err := l.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(ctx, l.timeout)
			defer cancel()
			if err := sink.Emit(ctx, e); err != nil {
				l.logger.Warn().Err(err).Str("sink", sink.Name()).Str("event_id", e.ID).Msg("audit sink failed")
			}
		})
		if err != nil {
			l.dropped.Add(1)
			if !errors.Is(err, ants.ErrPoolOverload) {
				l.logger.Warn().Err(err).Str("sink", sink.Name()).Msg("audit dispatch failed")
			}
		}
	}
}

// Recent 最近 n 条事件，最新的在前。n <= 0 返回全部
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]Event, 0, n)
	for i := range n {
		idx := (l.start + l.size - 1 - i) % len(l.ring)
		out = append(out, l.ring[idx])
	}
	return out
}

// Len 内存中的事件数
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Dropped 因协程池已满而未分发的次数
func (l *Log) Dropped() uint64 {
	return l.dropped.Load()
}

// Close 等待已提交的分发任务完成
func (l *Log) Close(ctx context.Context) error {
	if l.pool == nil {
		return nil
	}
	timeout := l.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return l.pool.ReleaseTimeout(timeout)
}
