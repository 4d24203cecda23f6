// Package redis 提供多实例部署使用的 Redis 会话存储与黑名单
package redis

// Option 存储选项
type Option func(*options)

type options struct {
	prefix string
}

// WithKeyPrefix 设置 key 前缀，默认 authgate
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

func newOptions(opts []Option) options {
	o := options{prefix: "authgate"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
