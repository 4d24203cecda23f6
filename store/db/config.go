package db

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kochabx/authgate/core/tag"
)

// Driver 数据库驱动类型
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string { return string(d) }

// Config 数据库配置。设置 DSN 时忽略连接字段
type Config struct {
	Driver Driver `json:"driver" mapstructure:"driver" default:"sqlite" validate:"oneof=mysql postgres sqlite"`
	DSN    string `json:"dsn" mapstructure:"dsn"`

	// mysql / postgres
	Host     string `json:"host" mapstructure:"host" default:"localhost"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database" default:"authgate"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode" default:"disable"`

	// sqlite 文件路径，":memory:" 为内存库
	Path string `json:"path" mapstructure:"path" default:"./authgate.db"`

	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns" default:"10"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns" default:"100"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" default:"1h"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time" default:"10m"`

	// silent | error | warn | info
	LogLevel      string        `json:"log_level" mapstructure:"log_level" default:"silent"`
	SlowThreshold time.Duration `json:"slow_threshold" mapstructure:"slow_threshold" default:"200ms"`
}

// SQLiteMemory 测试用的共享内存库
func SQLiteMemory() *Config {
	return &Config{Driver: DriverSQLite, DSN: "file::memory:?cache=shared", MaxOpenConns: 1}
}

func (c *Config) applyDefaults() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) dsn() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}

	switch c.Driver {
	case DriverMySQL:
		port := c.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			c.User, c.Password, c.Host, port, c.Database), nil
	case DriverPostgres:
		port := c.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, port),
			Path:     "/" + c.Database,
			RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
		}
		return u.String(), nil
	case DriverSQLite:
		return "file:" + c.Path + "?_busy_timeout=5000&_foreign_keys=true", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
}

// logLevel 映射到 gorm logger.LogLevel（1 silent ~ 4 info）
func (c *Config) logLevel() int {
	switch strings.ToLower(c.LogLevel) {
	case "error":
		return 2
	case "warn":
		return 3
	case "info":
		return 4
	default:
		return 1
	}
}
