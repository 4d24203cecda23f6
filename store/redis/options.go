package redis

import (
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/authgate/log"
)

// Option 客户端选项
type Option func(*clientOptions)

type clientOptions struct {
	hooks         []redis.Hook
	enableTracing bool
	enableMetrics bool
	tracingOpts   []redisotel.TracingOption
	metricsOpts   []redisotel.MetricsOption
	logger        *log.Logger
}

// WithHooks 添加自定义 Hook
func WithHooks(hooks ...redis.Hook) Option {
	return func(o *clientOptions) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithTracing 启用 OpenTelemetry 追踪
func WithTracing(opts ...redisotel.TracingOption) Option {
	return func(o *clientOptions) {
		o.enableTracing = true
		o.tracingOpts = opts
	}
}

// WithMetrics 启用 OpenTelemetry 指标
func WithMetrics(opts ...redisotel.MetricsOption) Option {
	return func(o *clientOptions) {
		o.enableMetrics = true
		o.metricsOpts = opts
	}
}

// WithLogger 设置日志记录器，默认 log.G
func WithLogger(logger *log.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}
