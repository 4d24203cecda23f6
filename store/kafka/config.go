package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kochabx/authgate/core/tag"
)

// Balancer 分区策略
type Balancer string

const (
	BalancerLeastBytes Balancer = "least_bytes"
	BalancerHash       Balancer = "hash"
)

// Config Kafka 生产者配置
type Config struct {
	// Broker 地址列表
	Brokers []string `json:"brokers" mapstructure:"brokers" default:"localhost:9092" validate:"min=1"`

	// SASL/PLAIN 认证，两者均非空时启用
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`

	// 按 key 哈希可以保证同一用户的事件有序
	Balancer               Balancer `json:"balancer" mapstructure:"balancer" default:"hash" validate:"oneof=least_bytes hash"`
	AllowAutoTopicCreation bool     `json:"allow_auto_topic_creation" mapstructure:"allow_auto_topic_creation"`

	BatchTimeout time.Duration `json:"batch_timeout" mapstructure:"batch_timeout" default:"100ms"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"5s"`
	CloseTimeout time.Duration `json:"close_timeout" mapstructure:"close_timeout" default:"5s"`
}

func (c *Config) applyDefaults() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) balancer() kafka.Balancer {
	if c.Balancer == BalancerLeastBytes {
		return &kafka.LeastBytes{}
	}
	return &kafka.Hash{}
}
