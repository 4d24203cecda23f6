package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kochabx/authgate/core/validator"
	"github.com/kochabx/authgate/log"
)

var (
	ErrInvalidConfig     = errors.New("db: invalid config")
	ErrUnsupportedDriver = errors.New("db: unsupported driver")
	ErrNotInitialized    = errors.New("db: not connected")
)

// Client 数据库客户端
type Client struct {
	config  *Config
	db      *gorm.DB
	sqlDB   *sql.DB
	options *clientOptions
	logger  *log.Logger
}

// New 创建客户端并 Ping 一次
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := validator.Validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	c := &Client{config: cfg, options: options, logger: options.logger}
	if c.logger == nil {
		c.logger = log.G
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), options.connectTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Debug().Str("driver", cfg.Driver.String()).Msg("database client created")
	return c, nil
}

func (c *Client) connect() error {
	dialector, err := c.dialector()
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, c.gormConfig())
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(c.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.config.ConnMaxIdleTime)

	for _, plugin := range c.options.plugins {
		if err := db.Use(plugin); err != nil {
			return err
		}
	}

	c.db = db
	c.sqlDB = sqlDB
	return nil
}

func (c *Client) dialector() (gorm.Dialector, error) {
	dsn, err := c.config.dsn()
	if err != nil {
		return nil, err
	}

	switch c.config.Driver {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, ErrUnsupportedDriver
	}
}

func (c *Client) gormConfig() *gorm.Config {
	if c.options.gormConfig != nil {
		return c.options.gormConfig
	}
	return &gorm.Config{
		Logger: logger.New(gormLogWriter{c.logger}, logger.Config{
			LogLevel:                  logger.LogLevel(c.config.logLevel()),
			SlowThreshold:             c.config.SlowThreshold,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// DB GORM 实例
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Ping 连接检查
func (c *Client) Ping(ctx context.Context) error {
	if c.sqlDB == nil {
		return ErrNotInitialized
	}
	return c.sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (c *Client) Close() error {
	if c.sqlDB == nil {
		return nil
	}
	return c.sqlDB.Close()
}

// Stats 连接池统计
func (c *Client) Stats() sql.DBStats {
	if c.sqlDB == nil {
		return sql.DBStats{}
	}
	return c.sqlDB.Stats()
}

// gormLogWriter 将 GORM 日志转发到 log.Logger
type gormLogWriter struct {
	logger *log.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.logger.Info().Str("component", "gorm").Msgf(format, args...)
}
