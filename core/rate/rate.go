// Package rate 实现滑动日志限流。
//
// 每个 key 记录窗口内被放行请求的时间戳；只有落在当前窗口
// (now-window, now] 内的请求才计数，被拒绝的请求不记录。
package rate

import (
	"context"
	"fmt"
	"time"
)

// Class 限流类别，不同类别的计数互不影响
type Class string

const (
	General Class = "general"
	Auth    Class = "auth"
	API     Class = "api"
)

// Rule 窗口内最多放行 Limit 次
type Rule struct {
	Limit  int           `json:"limit" mapstructure:"limit"`
	Window time.Duration `json:"window" mapstructure:"window"`
}

// DefaultRules 各类别的默认规则
var DefaultRules = map[Class]Rule{
	General: {Limit: 100, Window: 15 * time.Minute},
	Auth:    {Limit: 5, Window: 15 * time.Minute},
	API:     {Limit: 60, Window: time.Minute},
}

// Config 限流配置，未设置的规则取 DefaultRules
type Config struct {
	Disabled bool `json:"disabled" mapstructure:"disabled"`

	General Rule `json:"general" mapstructure:"general"`
	Auth    Rule `json:"auth" mapstructure:"auth"`
	API     Rule `json:"api" mapstructure:"api"`
}

// Rules 合并默认值后的规则
func (c *Config) Rules() map[Class]Rule {
	rules := make(map[Class]Rule, len(DefaultRules))
	for class, rule := range map[Class]Rule{General: c.General, Auth: c.Auth, API: c.API} {
		def := DefaultRules[class]
		if rule.Limit == 0 {
			rule.Limit = def.Limit
		}
		if rule.Window == 0 {
			rule.Window = def.Window
		}
		rules[class] = rule
	}
	return rules
}

// Decision 一次限流判定
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter 单一规则的限流器
type Limiter interface {
	// Allow 判断 key 在时间 now 的请求是否放行，放行时计入窗口
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)

	// Sweep 清理窗口外的记录
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Set 按类别组织的限流器
type Set struct {
	limiters map[Class]Limiter
	disabled bool
	now      func() time.Time
}

// SetOption 选项
type SetOption func(*Set)

// WithClock 替换时间源
func WithClock(now func() time.Time) SetOption {
	return func(s *Set) { s.now = now }
}

// NewSet 用 newLimiter 为每个类别的规则创建限流器
func NewSet(cfg Config, newLimiter func(Class, Rule) Limiter, opts ...SetOption) *Set {
	s := &Set{limiters: make(map[Class]Limiter), disabled: cfg.Disabled, now: time.Now}
	for class, rule := range cfg.Rules() {
		s.limiters[class] = newLimiter(class, rule)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMemorySet 进程内限流
func NewMemorySet(cfg Config, opts ...SetOption) *Set {
	return NewSet(cfg, func(_ Class, r Rule) Limiter { return NewMemory(r) }, opts...)
}

// Allow 按类别与客户端标识（通常是 IP）判定，关闭限流时一律放行
func (s *Set) Allow(ctx context.Context, class Class, client string) (Decision, error) {
	lim, ok := s.limiters[class]
	if !ok {
		return Decision{}, fmt.Errorf("rate: unknown class %q", class)
	}
	if s.disabled {
		return Decision{Allowed: true}, nil
	}
	return lim.Allow(ctx, string(class)+":"+client, s.now())
}

// Sweep 清理所有类别
func (s *Set) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	for _, lim := range s.limiters {
		n, err := lim.Sweep(ctx, now)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
