package log

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/kochabx/authgate/core/tag"
	"github.com/kochabx/authgate/log/desensitize"
	"github.com/kochabx/authgate/log/writer"
)

// Logger 日志记录器
type Logger struct {
	zerolog.Logger
	hook   *desensitize.Hook
	closer io.Closer
}

// Option Logger 选项
type Option func(*options)

type options struct {
	level  zerolog.Level
	caller bool
	hook   *desensitize.Hook
}

// WithLevel 设置日志级别
func WithLevel(level zerolog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithCaller 输出调用位置
func WithCaller() Option {
	return func(o *options) { o.caller = true }
}

// WithDesensitize 输出前按 hook 脱敏
func WithDesensitize(hook *desensitize.Hook) Option {
	return func(o *options) { o.hook = hook }
}

func init() {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

func newLogger(w io.Writer, closer io.Closer, opts ...Option) *Logger {
	o := options{level: zerolog.DebugLevel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hook != nil {
		w = desensitize.NewWriter(w, o.hook)
	}

	ctx := zerolog.New(w).Level(o.level).With().Timestamp()
	if o.caller {
		ctx = ctx.Caller()
	}
	return &Logger{Logger: ctx.Logger(), hook: o.hook, closer: closer}
}

// New 输出到控制台
func New(opts ...Option) *Logger {
	return newLogger(writer.Console(), nil, opts...)
}

// NewWriter 输出到任意 writer，日志为 JSON 行
func NewWriter(w io.Writer, opts ...Option) *Logger {
	return newLogger(w, nil, opts...)
}

// NewFile 输出到轮转文件
func NewFile(c FileConfig, opts ...Option) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("apply log file defaults: %w", err)
	}
	fw, err := writer.File(c.rotateConfig())
	if err != nil {
		return nil, err
	}
	return newLogger(fw, fw, opts...), nil
}

// NewMulti 同时输出到文件和控制台
func NewMulti(c FileConfig, opts ...Option) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("apply log file defaults: %w", err)
	}
	fw, err := writer.File(c.rotateConfig())
	if err != nil {
		return nil, err
	}
	return newLogger(zerolog.MultiLevelWriter(fw, writer.Console()), fw, opts...), nil
}

// FromConfig 按配置创建 Logger
func FromConfig(c Config) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("apply log defaults: %w", err)
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	opts := []Option{WithLevel(level)}
	if c.Caller {
		opts = append(opts, WithCaller())
	}
	if !c.DisableDesensitize {
		opts = append(opts, WithDesensitize(desensitize.NewHook(desensitize.AuthRules()...)))
	}

	switch c.Output {
	case "file":
		return NewFile(c.File, opts...)
	case "multi":
		return NewMulti(c.File, opts...)
	default:
		return New(opts...), nil
	}
}

// Hook 返回脱敏钩子，未启用时为 nil
func (l *Logger) Hook() *desensitize.Hook {
	return l.hook
}

// Close 关闭文件输出
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
