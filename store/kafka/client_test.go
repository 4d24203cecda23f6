package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := &Config{}
	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, BalancerHash, cfg.Balancer)
	assert.IsType(t, &kafka.Hash{}, cfg.balancer())
	assert.Nil(t, c.transport.SASL)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Config{Balancer: "random"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWriterIsCachedPerTopic(t *testing.T) {
	c, err := New(&Config{Brokers: []string{"127.0.0.1:9092"}, Username: "u", Password: "p", Balancer: BalancerLeastBytes})
	require.NoError(t, err)
	assert.NotNil(t, c.transport.SASL)

	a1, err := c.Writer("a")
	require.NoError(t, err)
	a2, err := c.Writer("a")
	require.NoError(t, err)
	b, err := c.Writer("b")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)

	w := a1.(*kafka.Writer)
	assert.Equal(t, "a", w.Topic)
	assert.IsType(t, &kafka.LeastBytes{}, w.Balancer)

	require.NoError(t, c.Close())
	_, err = c.Writer("a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Publish(context.Background(), "a", nil, []byte("x")), ErrClosed)
}
