package cache

import (
	"context"
	"time"
)

// Blacklist token 黑名单，按 jti 记录，到期后自动失效
type Blacklist interface {
	// Add 加入黑名单，expiresAt 为 token 自身的过期时间
	Add(ctx context.Context, jti string, expiresAt time.Time) error

	// Contains 检查 jti 是否在黑名单中
	Contains(ctx context.Context, jti string) (bool, error)

	// Sweep 清理过期条目，返回清理数量
	Sweep(ctx context.Context) (int, error)
}
