package token

import (
	"time"

	"github.com/kochabx/authgate/log"
)

// Option 服务选项
type Option func(*Service)

// WithLogger 设置日志记录器，默认 log.G
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics 记录签发与校验次数
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}
