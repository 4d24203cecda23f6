package lockout

import (
	"context"
	"time"
)

// Record 单个标识（用户名、IP）的登录失败记录
type Record struct {
	Identifier  string    `json:"identifier"`
	Failures    int       `json:"failures"`
	LastAttempt time.Time `json:"last_attempt"`
	LockedUntil time.Time `json:"locked_until,omitzero"`
	// 记录可以被丢弃的时间，存储据此设置 TTL；零值表示一直保留
	ExpiresAt time.Time `json:"expires_at"`
}

// Locked 是否处于锁定期
func (r *Record) Locked(now time.Time) bool {
	return !r.LockedUntil.IsZero() && now.Before(r.LockedUntil)
}

// Store 失败记录存储
type Store interface {
	// Get 获取记录，不存在时返回 nil
	Get(ctx context.Context, identifier string) (*Record, error)

	// Update 原子地读取-修改-写回。fn 收到 nil 表示记录不存在，返回 nil 表示删除
	Update(ctx context.Context, identifier string, fn func(*Record) *Record) error

	// Delete 删除记录
	Delete(ctx context.Context, identifier string) error

	// Sweep 删除 ExpiresAt 非零且不晚于 now 的记录
	Sweep(ctx context.Context, now time.Time) (int, error)
}
