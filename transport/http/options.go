package http

import (
	"context"
	"time"

	"github.com/kochabx/authgate/core/tag"
)

// Config HTTP 服务配置
type Config struct {
	Addr              string        `json:"addr" mapstructure:"addr" default:":8080"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" mapstructure:"read_header_timeout" default:"10s"`
	ReadTimeout       time.Duration `json:"read_timeout" mapstructure:"read_timeout" default:"30s"`
	WriteTimeout      time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"30s"`
	IdleTimeout       time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" default:"2m"`
	// 反向代理地址，为空时不信任 X-Forwarded-For
	TrustedProxies []string      `json:"trusted_proxies" mapstructure:"trusted_proxies"`
	Metrics        MetricsOption `json:"metrics" mapstructure:"metrics"`
	Health         HealthOption  `json:"health" mapstructure:"health"`
}

type Options struct {
	Metrics MetricsOption
	Health  HealthOption
}

type MetricsOption struct {
	Enabled                   bool   `json:"enabled" mapstructure:"enabled"`
	Path                      string `json:"path" mapstructure:"path" default:"/metrics"`
	EnabledGoCollector        bool   `json:"enabled_go_collector" mapstructure:"enabled_go_collector"`
	EnabledBuildInfoCollector bool   `json:"enabled_build_info_collector" mapstructure:"enabled_build_info_collector"`
}

func (m *MetricsOption) init() error {
	return tag.ApplyDefaults(m)
}

// CheckFunc 健康检查项，返回 nil 表示正常
type CheckFunc func(ctx context.Context) error

type HealthOption struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	Path    string        `json:"path" mapstructure:"path" default:"/health"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" default:"2s"`
	// 依赖检查，如 redis、数据库
	Checks map[string]CheckFunc `json:"-" mapstructure:"-"`
}

func (h *HealthOption) init() error {
	return tag.ApplyDefaults(h)
}
