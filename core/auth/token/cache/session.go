package cache

import (
	"context"
	"time"
)

// Session 会话，sessionID 在 access/refresh token 之间共享
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired 会话是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore 会话存储，按用户维护活跃会话集合
type SessionStore interface {
	// Save 保存会话并加入用户的活跃集合
	Save(ctx context.Context, session *Session) error

	// Get 获取活跃会话，不存在或已过期返回 ErrSessionNotFound
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Delete 删除用户的单个会话
	Delete(ctx context.Context, userID, sessionID string) error

	// DeleteAll 删除用户所有会话
	DeleteAll(ctx context.Context, userID string) error

	// List 列出用户所有活跃会话
	List(ctx context.Context, userID string) ([]*Session, error)

	// Sweep 清理过期会话，返回清理数量
	Sweep(ctx context.Context) (int, error)
}
