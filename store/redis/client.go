package redis

import (
	"context"
	"runtime"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/authgate/log"
)

// Client Redis 客户端（单机/集群/哨兵）
type Client struct {
	client redis.UniversalClient
	config *Config
	logger *log.Logger
}

// New 创建客户端并 Ping 一次
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.G
	}

	c := &Client{
		client: redis.NewUniversalClient(universalOptions(cfg)),
		config: cfg,
		logger: o.logger,
	}
	if err := c.setupHooks(cfg, o); err != nil {
		_ = c.client.Close()
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.client.Close()
		return nil, err
	}

	c.logger.Debug().Str("mode", cfg.mode()).Strs("addrs", cfg.Addrs).Msg("redis client created")
	return c, nil
}

func universalOptions(cfg *Config) *redis.UniversalOptions {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10 * runtime.GOMAXPROCS(0)
	}
	return &redis.UniversalOptions{
		Addrs:           cfg.Addrs,
		MasterName:      cfg.MasterName,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		Protocol:        cfg.Protocol,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        poolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxIdleTime: cfg.MaxIdleTime,
		PoolTimeout:     cfg.PoolTimeout,
		MaxRetries:      cfg.MaxRetries,
	}
}

func (c *Client) setupHooks(cfg *Config, o *clientOptions) error {
	for _, hook := range o.hooks {
		c.client.AddHook(hook)
	}
	if o.enableTracing {
		if err := redisotel.InstrumentTracing(c.client, o.tracingOpts...); err != nil {
			return err
		}
	}
	if o.enableMetrics {
		if err := redisotel.InstrumentMetrics(c.client, o.metricsOpts...); err != nil {
			return err
		}
	}
	if cfg.Debug {
		c.client.AddHook(NewDebugHook(c.logger, cfg.SlowThreshold))
	}
	return nil
}

// UniversalClient 底层客户端，执行所有 Redis 命令
func (c *Client) UniversalClient() redis.UniversalClient {
	return c.client
}

// Ping 连接检查，可作为健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭客户端
func (c *Client) Close() error {
	err := c.client.Close()
	c.logger.Debug().Msg("redis client closed")
	return err
}
