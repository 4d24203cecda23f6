package redis

import (
	"time"

	"github.com/kochabx/authgate/core/tag"
)

// Config Redis 配置，单机/集群/哨兵由 Addrs 与 MasterName 决定
type Config struct {
	// 单机 ["localhost:6379"]，集群多个节点，哨兵模式为哨兵地址
	Addrs      []string `json:"addrs" mapstructure:"addrs" default:"localhost:6379"`
	MasterName string   `json:"master_name" mapstructure:"master_name"`
	Username   string   `json:"username" mapstructure:"username"`
	Password   string   `json:"password" mapstructure:"password"`
	// 集群模式忽略
	DB       int `json:"db" mapstructure:"db"`
	Protocol int `json:"protocol" mapstructure:"protocol" default:"3"`

	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout" default:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"3s"`

	// 0 表示 10 * GOMAXPROCS
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" mapstructure:"min_idle_conns"`
	MaxIdleTime  time.Duration `json:"max_idle_time" mapstructure:"max_idle_time" default:"5m"`
	PoolTimeout  time.Duration `json:"pool_timeout" mapstructure:"pool_timeout" default:"4s"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries"`

	// 慢命令阈值，开启 Debug 时生效
	SlowThreshold time.Duration `json:"slow_threshold" mapstructure:"slow_threshold" default:"100ms"`
	Debug         bool          `json:"debug" mapstructure:"debug"`
}

// Single 单机配置
func Single(addr string) *Config {
	return &Config{Addrs: []string{addr}}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return ErrEmptyAddrs
	}
	return nil
}

func (c *Config) applyDefaults() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) mode() string {
	switch {
	case c.MasterName != "":
		return "sentinel"
	case len(c.Addrs) > 1:
		return "cluster"
	default:
		return "single"
	}
}
