// Package kafka 封装 segmentio/kafka-go 生产者，按主题复用 Writer
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"golang.org/x/sync/errgroup"

	"github.com/kochabx/authgate/core/validator"
	"github.com/kochabx/authgate/log"
)

var (
	ErrInvalidConfig = errors.New("kafka: invalid config")
	ErrClosed        = errors.New("kafka: producer closed")
)

// MessageWriter kafka.Writer 的最小接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Client 生产者客户端
type Client struct {
	config    *Config
	transport *kafka.Transport
	logger    *log.Logger

	mu      sync.RWMutex
	writers map[string]MessageWriter
	closed  bool
}

// Option 选项
type Option func(*Client)

// WithLogger 设置日志记录器
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New 创建客户端，不会立即连接 broker
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

	c := &Client{
		config:    cfg,
		transport: &kafka.Transport{},
		logger:    log.G,
		writers:   make(map[string]MessageWriter),
	}
	if cfg.Username != "" && cfg.Password != "" {
		c.transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Writer 获取主题的同步 Writer，不存在时创建
func (c *Client) Writer(topic string) (MessageWriter, error) {
	c.mu.RLock()
	w, ok := c.writers[topic]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return w, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if w, ok := c.writers[topic]; ok {
		return w, nil
	}

	w = &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               c.config.balancer(),
		Transport:              c.transport,
		AllowAutoTopicCreation: c.config.AllowAutoTopicCreation,
		BatchTimeout:           c.config.BatchTimeout,
		WriteTimeout:           c.config.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
	}
	c.writers[topic] = w
	c.logger.Debug().Str("topic", topic).Strs("brokers", c.config.Brokers).Msg("kafka writer created")
	return w, nil
}

// Publish 写入一条消息
func (c *Client) Publish(ctx context.Context, topic string, key, value []byte) error {
	w, err := c.Writer(topic)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

// Close 并发关闭所有 Writer，等待缓冲消息发送完毕
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CloseTimeout)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	for topic, w := range c.writers {
		eg.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- w.Close() }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return fmt.Errorf("close writer %s: %w", topic, ctx.Err())
			}
		})
	}
	return eg.Wait()
}
