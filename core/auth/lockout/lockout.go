// Package lockout 按标识统计登录失败次数并在达到阈值后临时锁定。
//
// 状态机：Open → Accumulating → Locked → Open。
// 锁定期间的尝试既不放行也不计数；锁定到期后的第一次尝试从新的计数开始。
// 失败计数只在成功、锁定到期或 Reset 时清零；配置 Retention 后，
// 长时间没有新失败的计数也会被丢弃。
package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/kochabx/authgate/core/tag"
	"github.com/kochabx/authgate/core/validator"
	"github.com/kochabx/authgate/log"
)

// Result 一次尝试或查询的结果
type Result struct {
	Allowed      bool      `json:"allowed"`
	AttemptsLeft int       `json:"attempts_left"`
	LockedUntil  time.Time `json:"locked_until,omitzero"`
}

// Lockout 账户锁定器
type Lockout struct {
	cfg    Config
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// Option 选项
type Option func(*Lockout)

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(l *Lockout) { l.logger = logger }
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(l *Lockout) { l.now = now }
}

// New 创建锁定器，store 为 nil 时使用进程内存储
func New(cfg Config, store Store, opts ...Option) (*Lockout, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply lockout defaults: %w", err)
	}
	if err := validator.Validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("lockout config: %w", err)
	}
	if store == nil {
		store = NewMemoryStore()
	}

	l := &Lockout{
		cfg:    cfg,
		store:  store,
		logger: log.G,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// RecordAttempt 记录一次登录尝试。达到阈值的那次失败即返回 Allowed=false
func (l *Lockout) RecordAttempt(ctx context.Context, identifier string, success bool) (Result, error) {
	now := l.now()
	var res Result

	err := l.store.Update(ctx, identifier, func(rec *Record) *Record {
		if rec != nil && rec.Locked(now) {
			res = Result{LockedUntil: rec.LockedUntil}
			return rec
		}
		if success {
			res = Result{Allowed: true, AttemptsLeft: l.cfg.Threshold}
			return nil
		}

		if rec == nil || l.stale(rec, now) {
			rec = &Record{Identifier: identifier}
		}
		rec.Failures++
		rec.LastAttempt = now
		rec.ExpiresAt = time.Time{}
		if l.cfg.Retention > 0 {
			rec.ExpiresAt = now.Add(l.cfg.Retention)
		}

		if rec.Failures >= l.cfg.Threshold {
			rec.LockedUntil = now.Add(l.cfg.Duration)
			rec.ExpiresAt = rec.LockedUntil
			res = Result{LockedUntil: rec.LockedUntil}
			return rec
		}
		res = Result{Allowed: true, AttemptsLeft: l.cfg.Threshold - rec.Failures}
		return rec
	})
	if err != nil {
		return Result{}, fmt.Errorf("record attempt: %w", err)
	}

	if !res.Allowed && !success {
		l.logger.Warn().Str("identifier", identifier).Time("locked_until", res.LockedUntil).Msg("login locked")
	}
	return res, nil
}

// Status 只读查询，不修改计数
func (l *Lockout) Status(ctx context.Context, identifier string) (Result, error) {
	rec, err := l.store.Get(ctx, identifier)
	if err != nil {
		return Result{}, fmt.Errorf("lockout status: %w", err)
	}

	now := l.now()
	switch {
	case rec == nil || l.stale(rec, now):
		return Result{Allowed: true, AttemptsLeft: l.cfg.Threshold}, nil
	case rec.Locked(now):
		return Result{LockedUntil: rec.LockedUntil}, nil
	default:
		return Result{Allowed: true, AttemptsLeft: l.cfg.Threshold - rec.Failures}, nil
	}
}

// Reset 管理员解锁
func (l *Lockout) Reset(ctx context.Context, identifier string) error {
	if err := l.store.Delete(ctx, identifier); err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}
	l.logger.Info().Str("identifier", identifier).Msg("lockout reset")
	return nil
}

// Sweep 清理锁定已到期的记录，以及超过 Retention 的失败计数
func (l *Lockout) Sweep(ctx context.Context) (int, error) {
	return l.store.Sweep(ctx, l.now())
}

// stale 锁定已过期，或未锁定且超过了 Retention
func (l *Lockout) stale(rec *Record, now time.Time) bool {
	if !rec.LockedUntil.IsZero() {
		return !now.Before(rec.LockedUntil)
	}
	return l.cfg.Retention > 0 && !now.Before(rec.LastAttempt.Add(l.cfg.Retention))
}
