package scheduler

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/acquire_lock.lua
	acquireLockScript string

	//go:embed lua/release_lock.lua
	releaseLockScript string

	//go:embed lua/extend_lock.lua
	extendLockScript string

	acquireLock = redis.NewScript(acquireLockScript)
	releaseLock = redis.NewScript(releaseLockScript)
	extendLock  = redis.NewScript(extendLockScript)
)

// Locker 多实例部署时保证同一清理任务同一时刻只在一个实例上执行
type Locker interface {
	Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, value string) (bool, error)
}

var _ Locker = (*DistLock)(nil)

// DistLock 基于 Redis 的分布式锁
type DistLock struct {
	client    redis.UniversalClient
	namespace string
}

// NewDistLock 创建分布式锁
func NewDistLock(client redis.UniversalClient, namespace string) *DistLock {
	return &DistLock{
		client:    client,
		namespace: namespace,
	}
}

func (l *DistLock) buildLockKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.namespace, key)
}

// Acquire 获取锁
// 返回: (是否成功, error)
func (l *DistLock) Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	result, err := acquireLock.Run(ctx, l.client, []string{l.buildLockKey(key)}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// Release 释放锁
// 只有持有锁的客户端才能释放（通过value验证）
func (l *DistLock) Release(ctx context.Context, key, value string) (bool, error) {
	result, err := releaseLock.Run(ctx, l.client, []string{l.buildLockKey(key)}, value).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// Extend 延长锁的TTL
func (l *DistLock) Extend(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	result, err := extendLock.Run(ctx, l.client, []string{l.buildLockKey(key)}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// IsLocked 检查锁是否存在
func (l *DistLock) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.buildLockKey(key)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
