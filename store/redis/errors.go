package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNil key 不存在
	ErrNil = redis.Nil
	// ErrTxFailed WATCH 的 key 在事务提交前被修改
	ErrTxFailed = redis.TxFailedErr

	ErrInvalidConfig = errors.New("redis: invalid configuration")
	ErrEmptyAddrs    = errors.New("redis: addrs cannot be empty")
)
