package rate

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	storeredis "github.com/kochabx/authgate/store/redis"
)

var (
	//go:embed slidingwindow.lua
	slidingWindowLua       string
	slidingWindowLuaScript = redis.NewScript(slidingWindowLua)
)

// Redis 基于 ZSET 的滑动日志，多实例共享计数
//
//	{prefix}:rate:{class}:{client}  成员为请求 ID，分值为毫秒时间戳
type Redis struct {
	client *storeredis.Client
	prefix string
	rule   Rule
	script *redis.Script
}

// NewRedis 创建 Redis 限流器
func NewRedis(client *storeredis.Client, prefix string, rule Rule) *Redis {
	if prefix == "" {
		prefix = "authgate"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		rule:   rule,
		script: slidingWindowLuaScript,
	}
}

// NewRedisSet 多实例限流
func NewRedisSet(client *storeredis.Client, prefix string, cfg Config, opts ...SetOption) *Set {
	return NewSet(cfg, func(_ Class, r Rule) Limiter { return NewRedis(client, prefix, r) }, opts...)
}

func (l *Redis) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	res, err := l.script.Run(ctx, l.client.UniversalClient(),
		[]string{l.prefix + ":rate:" + key},
		l.rule.Window.Milliseconds(), l.rule.Limit, now.UnixMilli(), strconv.FormatInt(now.UnixMilli(), 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate: run script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate: unexpected script result %v", res)
	}

	return Decision{
		Allowed:    res[0] == 1,
		Limit:      l.rule.Limit,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Sweep 由 key 的 TTL 负责过期
func (l *Redis) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

var _ Limiter = (*Redis)(nil)
