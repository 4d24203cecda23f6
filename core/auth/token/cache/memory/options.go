// Package memory 提供单实例部署使用的进程内会话存储与黑名单
package memory

import "time"

// Option 存储选项
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
